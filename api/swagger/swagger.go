package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Sync",
        "description": "Ops endpoints of the timetable synchronisation service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Ops", "description": "Liveness, readiness and metrics"},
        {"name": "Sync Jobs", "description": "Status of timetable sync runs"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Health check",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness check",
                "description": "Pings the database and reports the size of the stored timetable.",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Ready", "schema": {"$ref": "#/definitions/Readiness"}},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/sync/jobs": {
            "get": {
                "tags": ["Sync Jobs"],
                "summary": "List recent sync jobs",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer", "description": "Maximum number of jobs, default 20"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/jobs/{id}": {
            "get": {
                "tags": ["Sync Jobs"],
                "summary": "Get sync job",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SnapshotCounts": {
            "type": "object",
            "properties": {
                "teachers": {"type": "integer"},
                "classes": {"type": "integer"},
                "lessons": {"type": "integer"},
                "class_lessons": {"type": "integer"},
                "teacher_lessons": {"type": "integer"}
            }
        },
        "Readiness": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "snapshot": {"$ref": "#/definitions/SnapshotCounts"}
            }
        },
        "SyncJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "DONE", "ERROR"]},
                "source": {"type": "string"},
                "sync_date": {"type": "string", "format": "date-time"},
                "log": {"type": "string"},
                "error_message": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "finished_at": {"type": "string", "format": "date-time"}
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
