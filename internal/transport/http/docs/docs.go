// Package docs registers the OpenAPI document served at /openapi.json.
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
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "服务健康状态",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/scenes": {
            "get": {
                "tags": ["Scenes"],
                "summary": "场景列表",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/settings": {
            "get": {
                "tags": ["Settings"],
                "summary": "读取设置（API Key 已脱敏）",
                "parameters": [{"$ref": "#/parameters/ClientID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            },
            "put": {
                "tags": ["Settings"],
                "summary": "保存设置",
                "consumes": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/ClientID"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/Settings"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "400": {"description": "Invalid settings", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            },
            "delete": {
                "tags": ["Settings"],
                "summary": "删除设置",
                "parameters": [{"$ref": "#/parameters/ClientID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/settings/export": {
            "get": {
                "tags": ["Settings"],
                "summary": "导出用户数据",
                "produces": ["application/json"],
                "parameters": [{"$ref": "#/parameters/ClientID"}],
                "responses": {"200": {"description": "user-data.json attachment"}}
            }
        },
        "/generations": {
            "post": {
                "tags": ["Generations"],
                "summary": "开始生成对话与英语块",
                "consumes": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/ClientID"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/StartRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "400": {"description": "Unknown scene or missing configuration", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/generations/current": {
            "get": {
                "tags": ["Generations"],
                "summary": "当前会话快照",
                "parameters": [{"$ref": "#/parameters/ClientID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            },
            "delete": {
                "tags": ["Generations"],
                "summary": "重置会话",
                "parameters": [{"$ref": "#/parameters/ClientID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/generations/current/dialogue": {
            "patch": {
                "tags": ["Generations"],
                "summary": "展开或收起对话",
                "consumes": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/ClientID"},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"expanded": {"type": "boolean"}}}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/convert": {
            "post": {
                "tags": ["Convert"],
                "summary": "把文本文件转换为英语块 JSON",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/ClientID"},
                    {"in": "formData", "name": "file", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "chunks_<ms>.json attachment"},
                    "400": {"description": "Invalid upload", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "502": {"description": "Model call failed", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        }
    },
    "parameters": {
        "ClientID": {"in": "header", "name": "Client-Id", "type": "string", "required": true}
    },
    "definitions": {
        "APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "message": {"type": "string"},
                "code": {"type": "integer"}
            }
        },
        "Settings": {
            "type": "object",
            "properties": {
                "gemini": {
                    "type": "object",
                    "properties": {
                        "apiKey": {"type": "string"},
                        "baseUrl": {"type": "string"}
                    }
                },
                "englishLevel": {"type": "string"},
                "voice": {"type": "string"},
                "speed": {"type": "number"}
            }
        },
        "StartRequest": {
            "type": "object",
            "properties": {
                "scene_id": {"type": "string"},
                "custom_prompt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Chunks Server API",
	Description:      "Scene dialogue and English chunk generation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
