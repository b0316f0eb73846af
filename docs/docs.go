// Package docs 手工维护的 swagger 文档，路径与 controller 上的 @Router 注解一一对应。
// 修改接口注解后用 `swag init -g main.go -o docs` 重新生成并覆盖本文件。
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
        "/api/classes/{classId}/quizzes": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["作答会话"],
                "summary": "班级测验列表",
                "parameters": [
                    {"type": "string", "description": "班级ID", "name": "classId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "502": {"description": "平台接口错误", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/health": {
            "get": {
                "description": "检查数据库与 Redis 状态",
                "produces": ["application/json"],
                "tags": ["系统"],
                "summary": "健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/proctor/learners/{learnerId}/events": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["监考"],
                "summary": "学生监考记录",
                "parameters": [
                    {"type": "integer", "description": "学生ID", "name": "learnerId", "in": "path", "required": true},
                    {"type": "integer", "default": 1, "description": "页码 (从1开始)", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "每页条数", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/proctor/sessions/{sessionId}/events": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["监考"],
                "summary": "单次会话监考记录",
                "parameters": [
                    {"type": "string", "description": "会话ID", "name": "sessionId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/quiz-sessions": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "学生确认提示后创建作答会话（尚未进入全屏）",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["作答会话"],
                "summary": "确认防作弊提示",
                "parameters": [
                    {"description": "测验", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controller.AcknowledgeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/util.Response"}},
                    "409": {"description": "已有进行中的会话", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/quiz-sessions/current": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["作答会话"],
                "summary": "当前会话",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "404": {"description": "没有进行中的会话", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "description": "只能在提交前取消，不会提交到平台",
                "produces": ["application/json"],
                "tags": ["作答会话"],
                "summary": "放弃作答",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/quiz-sessions/current/answers": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["作答会话"],
                "summary": "选择答案",
                "parameters": [
                    {"description": "答案", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controller.SelectAnswerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/quiz-sessions/current/index": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["作答会话"],
                "summary": "跳转题目",
                "parameters": [
                    {"description": "题目序号", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controller.NavigateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/quiz-sessions/current/start": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "请求客户端进入全屏，成功后开始计时与监考",
                "produces": ["application/json"],
                "tags": ["作答会话"],
                "summary": "开始作答",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "412": {"description": "无法进入安全模式", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/quiz-sessions/current/submit": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "有未作答题目且未确认时返回 409 和作答统计；提交失败可再次调用重试",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["作答会话"],
                "summary": "提交测验",
                "parameters": [
                    {"description": "确认", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/controller.SubmitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "409": {"description": "存在未作答题目", "schema": {"$ref": "#/definitions/util.Response"}},
                    "502": {"description": "提交失败", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/ws/lockdown": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "上报环境信号（切屏、退出全屏、失焦、窗口尺寸、被拦截的复制/右键/快捷键），接收全屏指令与倒计时提示",
                "tags": ["作答会话"],
                "summary": "监考 WebSocket 连接",
                "parameters": [
                    {"type": "string", "description": "JWT Token", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "controller.AcknowledgeRequest": {
            "type": "object",
            "required": ["classId", "sharedQuizId"],
            "properties": {
                "classId": {"type": "string", "example": "class-1"},
                "sharedQuizId": {"type": "string", "example": "shared-42"}
            }
        },
        "controller.NavigateRequest": {
            "type": "object",
            "required": ["index"],
            "properties": {
                "index": {"type": "integer", "example": 0}
            }
        },
        "controller.SelectAnswerRequest": {
            "type": "object",
            "required": ["answerId", "questionId"],
            "properties": {
                "answerId": {"type": "string", "example": "a2"},
                "questionId": {"type": "string", "example": "q1"}
            }
        },
        "controller.SubmitRequest": {
            "type": "object",
            "properties": {
                "confirmed": {"description": "Confirmed 存在未作答题目时需要学生二次确认", "type": "boolean", "example": false}
            }
        },
        "util.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "CoderEdu 考试锁定网关 API",
	Description:      "测验作答会话、倒计时与防作弊监控。",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
