// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/jobs": {
            "get": {
                "description": "Get every job execution, newest first",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List executions",
                "responses": {
                    "200": {
                        "description": "List of executions",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/batch.JobExecution"}}
                    },
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/jobs/importStudents": {
            "post": {
                "description": "Start an importStudents execution in the background. The body is optional and overrides the configured input path, chunk size or concurrency.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Launch the student import",
                "parameters": [
                    {
                        "description": "Overrides",
                        "name": "request",
                        "in": "body",
                        "schema": {"$ref": "#/definitions/model.LaunchRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Execution started", "schema": {"$ref": "#/definitions/model.LaunchResponse"}},
                    "400": {"description": "Invalid request payload", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "description": "Retrieve one execution with its step executions",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get execution",
                "parameters": [
                    {"type": "string", "description": "Execution ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Execution details", "schema": {"$ref": "#/definitions/batch.JobExecution"}},
                    "400": {"description": "Invalid execution ID", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Execution not found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/jobs/{id}/errors": {
            "get": {
                "description": "Retrieve every failure recorded for an execution",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get execution errors",
                "parameters": [
                    {"type": "string", "description": "Execution ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Execution errors", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid execution ID", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/jobs/{id}/progress": {
            "get": {
                "description": "Live chunk progress of an execution started by this server and still running",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get execution progress",
                "parameters": [
                    {"type": "string", "description": "Execution ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Progress", "schema": {"$ref": "#/definitions/model.JobProgress"}},
                    "404": {"description": "Execution not running", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/students": {
            "get": {
                "description": "Stored students ordered by ID",
                "produces": ["application/json"],
                "tags": ["students"],
                "summary": "List students",
                "parameters": [
                    {"type": "integer", "description": "Page size (default 100, max 1000)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Rows to skip", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Students", "schema": {"$ref": "#/definitions/model.StudentPage"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "batch.JobExecution": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "job_name": {"type": "string"},
                "status": {"type": "string"},
                "params": {"type": "object", "additionalProperties": {"type": "string"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "started_at": {"type": "string"},
                "ended_at": {"type": "string"},
                "exit_message": {"type": "string"},
                "steps": {"type": "array", "items": {"$ref": "#/definitions/batch.StepExecution"}}
            }
        },
        "batch.StepExecution": {
            "type": "object",
            "properties": {
                "step_name": {"type": "string"},
                "status": {"type": "string"},
                "read_count": {"type": "integer"},
                "write_count": {"type": "integer"},
                "filter_count": {"type": "integer"},
                "commit_count": {"type": "integer"},
                "rollback_count": {"type": "integer"},
                "started_at": {"type": "string"},
                "ended_at": {"type": "string"},
                "exit_message": {"type": "string"}
            }
        },
        "handler.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "model.JobProgress": {
            "type": "object",
            "properties": {
                "execution_id": {"type": "string"},
                "start_time": {"type": "string"},
                "last_update": {"type": "string"},
                "chunks_started": {"type": "integer"},
                "chunks_committed": {"type": "integer"},
                "chunks_failed": {"type": "integer"},
                "items_written": {"type": "integer"},
                "throughput_rps": {"type": "number"},
                "last_error": {"type": "string"},
                "done": {"type": "boolean"},
                "end_time": {"type": "string"}
            }
        },
        "model.LaunchRequest": {
            "type": "object",
            "properties": {
                "inputPath": {"type": "string"},
                "chunkSize": {"type": "integer", "minimum": 1},
                "concurrency": {"type": "integer", "minimum": 0}
            }
        },
        "model.LaunchResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "jobID": {"type": "string"},
                "status": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "model.Student": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "age": {"type": "string"}
            }
        },
        "model.StudentPage": {
            "type": "object",
            "properties": {
                "students": {"type": "array", "items": {"$ref": "#/definitions/model.Student"}},
                "total": {"type": "integer"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Student Batch API",
	Description:      "Launch the student CSV import and inspect its executions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
