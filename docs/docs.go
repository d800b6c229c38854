// Package docs registers the OpenAPI document served at /swagger. It follows the
// layout `swag init` emits; keep it in step with the handler annotations.
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
        "/post/newsfeed/report": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "List reports",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Report"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/post/newsfeed/report/{id}": {
            "post": {
                "description": "Flag a newsfeed post for moderation review",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Report a post",
                "parameters": [
                    {"type": "string", "description": "Post ID", "name": "id", "in": "path", "required": true},
                    {"description": "Report", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.ReportInput"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "406": {"description": "Not Acceptable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Removing a report that does not exist succeeds",
                "tags": ["reports"],
                "summary": "Remove a report",
                "parameters": [
                    {"type": "integer", "description": "Report ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/user/confirm-account": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Confirm an account",
                "parameters": [
                    {"type": "string", "description": "Confirmation token", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "properties": {"message": {"type": "string"}}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "410": {"description": "Gone", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "error": {"type": "string"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        },
        "models.Report": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "id": {"type": "integer"},
                "message": {"type": "string"},
                "post_id": {"type": "integer"},
                "username": {"type": "string"}
            }
        },
        "models.ReportInput": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "username": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "MyBuddy Moderation API",
	Description:      "Report intake, listing and removal for MyBuddy newsfeed posts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
