package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Envelope Batch API",
        "description": "Batch tracking for envelope scanning with per-item verdicts and spreadsheet import/export",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Batches", "description": "Batch lifecycle and reporting"},
        {"name": "Spreadsheets", "description": "Spreadsheet import and batch export"}
    ],
    "paths": {
        "/batches": {
            "get": {
                "tags": ["Batches"],
                "summary": "List batches with aggregated counts",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["running", "completed"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Batches"],
                "summary": "Start a new scanning batch",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StartBatchRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid scanner configuration"},
                    "409": {"description": "Duplicate batch code"}
                }
            }
        },
        "/batches/{id}": {
            "get": {
                "tags": ["Batches"],
                "summary": "Batch detail with items and pass/fail counts",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Batch not found"}
                }
            }
        },
        "/batches/{id}/finish": {
            "post": {
                "tags": ["Batches"],
                "summary": "Finalize a running batch with its scan results",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FinishBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "Completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Empty or invalid item set"},
                    "404": {"description": "Batch not found"},
                    "409": {"description": "Batch already finished"}
                }
            }
        },
        "/batches/{id}/export": {
            "get": {
                "tags": ["Spreadsheets"],
                "summary": "Download a completed batch as a formatted report",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["xlsx", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report file"},
                    "404": {"description": "Batch not found"},
                    "412": {"description": "Batch not completed or has no items"}
                }
            }
        },
        "/imports/spreadsheet": {
            "post": {
                "tags": ["Spreadsheets"],
                "summary": "Parse legacy scan results from an uploaded spreadsheet",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "Parsed items", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid file type or missing column"}
                }
            }
        }
    },
    "definitions": {
        "StartBatchRequest": {
            "type": "object",
            "required": ["scanners_configured"],
            "properties": {
                "scanners_configured": {"type": "array", "items": {"type": "integer"}},
                "batch_code": {"type": "string"}
            }
        },
        "FinishBatchRequest": {
            "type": "object",
            "required": ["items"],
            "properties": {
                "items": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "item_id": {"type": "integer"},
                            "scanner_1": {"type": "object"},
                            "scanner_2": {"type": "object"},
                            "scanner_3": {"type": "object"}
                        }
                    }
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
