// Package docs registers the OpenAPI description served under /swagger.
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
        "/login": {
            "post": {
                "description": "Verifies credentials and opens a new session",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.LoginInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session.Tokens"}},
                    "default": {"description": "Error", "schema": {"$ref": "#/definitions/apperr.appError"}}
                }
            }
        },
        "/refresh": {
            "post": {
                "description": "Exchanges a refresh token for a new token pair. Reusing a superseded token revokes the session.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Refresh tokens",
                "parameters": [
                    {"description": "Refresh token payload", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.RefreshInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session.Tokens"}},
                    "default": {"description": "Error", "schema": {"$ref": "#/definitions/apperr.appError"}}
                }
            }
        },
        "/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Revokes the session given by one of its refresh tokens, or by id when the bearer token's subject owns it. Succeeds for unknown or already revoked sessions.",
                "consumes": ["application/json"],
                "tags": ["auth"],
                "summary": "Logout",
                "parameters": [
                    {"description": "Session id or refresh token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.LogoutInput"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "default": {"description": "Error", "schema": {"$ref": "#/definitions/apperr.appError"}}
                }
            }
        },
        "/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the subject and session of the presented access token",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current principal",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session.Principal"}},
                    "default": {"description": "Error", "schema": {"$ref": "#/definitions/apperr.appError"}}
                }
            }
        },
        "/password": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Replaces the caller's secret and revokes all of the caller's sessions",
                "consumes": ["application/json"],
                "tags": ["auth"],
                "summary": "Change password",
                "parameters": [
                    {"description": "Old and new secret", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.ChangePasswordInput"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "default": {"description": "Error", "schema": {"$ref": "#/definitions/apperr.appError"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the caller's sessions that are neither revoked nor expired",
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "List own sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/session.Session"}}},
                    "default": {"description": "Error", "schema": {"$ref": "#/definitions/apperr.appError"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Revokes every session of the caller, the current one included",
                "tags": ["sessions"],
                "summary": "Revoke all own sessions",
                "responses": {
                    "204": {"description": "No Content"},
                    "default": {"description": "Error", "schema": {"$ref": "#/definitions/apperr.appError"}}
                }
            }
        },
        "/sessions/{session_id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["sessions"],
                "summary": "Revoke one own session",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "session_id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "default": {"description": "Error", "schema": {"$ref": "#/definitions/apperr.appError"}}
                }
            }
        }
    },
    "definitions": {
        "apperr.Violation": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "rule": {"type": "string"},
                "params": {"type": "object", "additionalProperties": {}}
            }
        },
        "apperr.appError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "violations": {"type": "array", "items": {"$ref": "#/definitions/apperr.Violation"}}
            }
        },
        "http.ChangePasswordInput": {
            "type": "object",
            "required": ["new_secret", "old_secret"],
            "properties": {
                "new_secret": {"type": "string", "maxLength": 72},
                "old_secret": {"type": "string", "maxLength": 72}
            }
        },
        "http.LoginInput": {
            "type": "object",
            "required": ["identifier", "secret"],
            "properties": {
                "identifier": {"type": "string", "maxLength": 256},
                "secret": {"type": "string", "maxLength": 72}
            }
        },
        "http.LogoutInput": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"},
                "session_id": {"type": "string"}
            }
        },
        "http.RefreshInput": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "session.Principal": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "subject": {"type": "string"}
            }
        },
        "session.Session": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "expires_at": {"type": "string"},
                "generation": {"type": "integer"},
                "id": {"type": "string"},
                "revoked": {"type": "boolean"},
                "subject": {"type": "string"}
            }
        },
        "session.Tokens": {
            "type": "object",
            "properties": {
                "access_expires_at": {"type": "string"},
                "access_token": {"type": "string"},
                "refresh_expires_at": {"type": "string"},
                "refresh_token": {"type": "string"},
                "session_id": {"type": "string"}
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
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "authsession API",
	Description:      "Session and token lifecycle: login, refresh with rotation and replay detection, logout and revocation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
