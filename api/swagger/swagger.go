package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Scolarité API",
        "description": "Document requests for the school office: transcripts, certificates and attestations.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and current account"},
        {"name": "Requests", "description": "Student document requests"},
        {"name": "Dashboard", "description": "Office listing, transitions, search, statistics and export"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current account",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/requests/{type}": {
            "post": {
                "tags": ["Requests"],
                "summary": "File a document request",
                "description": "type is releve, certificat or attestation; the body follows the matching payload definition.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "type", "required": true, "type": "string", "enum": ["releve", "certificat", "attestation"]},
                    {"in": "body", "name": "payload", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Field errors", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not a student", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{type}/mine": {
            "get": {
                "tags": ["Requests"],
                "summary": "List the caller's requests of one type",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "type", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/requests/{type}/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Request detail with status history",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "type", "required": true, "type": "string"},
                    {"in": "path", "name": "id", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Another student's request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/unified": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Unified request listing",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "statut", "type": "string"},
                    {"in": "query", "name": "type", "type": "string"},
                    {"in": "query", "name": "date_debut", "type": "string", "format": "date"},
                    {"in": "query", "name": "date_fin", "type": "string", "format": "date"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "stats, demandes, filtres_appliques", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/unified/status": {
            "post": {
                "tags": ["Dashboard"],
                "summary": "Move a request to a new status",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ChangeStatusRequest"}}],
                "responses": {
                    "200": {"description": "Applied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Transition not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/unified/search": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Find requests by public number",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "numero", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Matches", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No match", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/unified/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Office statistics",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Report, meta.cache_hit", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/requests/unified/export": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Export the filtered listing",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}],
                "responses": {"200": {"description": "File attachment", "schema": {"type": "file"}}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "ChangeStatusRequest": {
            "type": "object",
            "required": ["type_demande", "id", "nouveau_statut"],
            "properties": {
                "type_demande": {"type": "string", "enum": ["releve", "certificat", "attestation"]},
                "id": {"type": "integer"},
                "nouveau_statut": {"type": "string", "enum": ["en_attente", "en_cours", "pret", "retire", "rejete"]},
                "motif": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "fields": {"type": "object", "additionalProperties": {"type": "string"}}
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
