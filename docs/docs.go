// Package docs registers the OpenAPI document served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/v1/proofs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["proofs"],
                "summary": "List recent proof runs",
                "parameters": [
                    {"type": "integer", "description": "maximum runs (default 20, max 100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RunListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Scores the uploaded dataset files. Zip archives are unpacked first.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["proofs"],
                "summary": "Generate a proof of contribution",
                "parameters": [
                    {"type": "file", "description": "dataset files", "name": "files", "in": "formData", "required": true},
                    {"type": "string", "description": "pool identifier override", "name": "dlp_id", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "cached result", "schema": {"$ref": "#/definitions/types.ProofCreatedResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/types.ProofCreatedResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/v1/proofs/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["proofs"],
                "summary": "Get a recorded proof run",
                "parameters": [
                    {"type": "string", "description": "run id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/database.ProofRun"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/v1/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Proof statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "database.ProofRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "dlp_id": {"type": "string"},
                "score": {"type": "number"},
                "valid": {"type": "boolean"},
                "family_size": {"type": "integer"},
                "digest": {"type": "string"},
                "response": {"type": "object"},
                "source": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "database.RunStats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "valid": {"type": "integer"},
                "average_score": {"type": "number"},
                "by_source": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "category": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "proof.ProofResponse": {
            "type": "object",
            "properties": {
                "dlp_id": {},
                "valid": {"type": "boolean"},
                "score": {"type": "number"},
                "authenticity": {"type": "number"},
                "ownership": {"type": "number"},
                "quality": {"type": "number"},
                "uniqueness": {"type": "number"},
                "attributes": {"type": "object"},
                "metadata": {"type": "object"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "version": {"type": "string"},
                "timestamp": {"type": "string"},
                "metrics": {"type": "object"}
            }
        },
        "types.ProofCreatedResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "digest": {"type": "string"},
                "cached": {"type": "boolean"},
                "proof": {"$ref": "#/definitions/proof.ProofResponse"}
            }
        },
        "types.RunListResponse": {
            "type": "object",
            "properties": {
                "runs": {"type": "array", "items": {"$ref": "#/definitions/database.ProofRun"}},
                "count": {"type": "integer"}
            }
        },
        "types.StatsResponse": {
            "type": "object",
            "properties": {
                "history": {"$ref": "#/definitions/database.RunStats"},
                "metrics": {"type": "object"},
                "rate_limit": {"type": "object"},
                "cache": {"type": "object"},
                "database": {"type": "object"},
                "compression": {"type": "object"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Contribution Proof API",
	Description:      "Scores dataset uploads and records proof of contribution runs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
