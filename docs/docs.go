// Package docs 注册 Swagger 文档，由 swag init 按处理器注释生成后人工精简
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "CallbackToken": {"type": "apiKey", "name": "x-callback-token", "in": "header"}
    },
    "paths": {
        "/api/v1/courts/{id}/availability": {
            "get": {
                "tags": ["场地"],
                "summary": "获取可预订时段",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "date", "in": "query", "required": true, "description": "YYYY-MM-DD"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "日期格式错误"}, "404": {"description": "场地不存在"}}
            }
        },
        "/api/v1/courts/{id}/prices": {
            "get": {
                "tags": ["场地"],
                "summary": "获取时段价格",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "date", "in": "query", "required": true, "description": "YYYY-MM-DD"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "日期格式错误"}, "404": {"description": "场地不存在"}}
            }
        },
        "/api/v1/orders": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["订单"],
                "summary": "获取我的订单列表",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "401": {"description": "未登录"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["订单"],
                "summary": "创建订单",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "201": {"description": "订单及支付账单"},
                    "400": {"description": "参数错误"},
                    "409": {"description": "时段已被预订"},
                    "503": {"description": "订单已创建，支付网关不可用"}
                }
            }
        },
        "/api/v1/orders/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["订单"],
                "summary": "获取订单详情",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "无权访问"}, "404": {"description": "订单不存在"}}
            }
        },
        "/api/v1/orders/{id}/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["订单"],
                "summary": "获取订单状态变更记录",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "无权访问"}, "404": {"description": "订单不存在"}}
            }
        },
        "/api/v1/bookings/{id}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["预订"],
                "summary": "取消预订",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "无权操作"}, "422": {"description": "状态不允许取消"}}
            }
        },
        "/api/v1/booking/{id}/status": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["预订"],
                "summary": "变更预订状态",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "无权操作"}, "422": {"description": "非法状态流转"}}
            }
        },
        "/api/v1/booking/{id}/blocking": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["预订"],
                "summary": "设置占场标记",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "无权操作"}}
            }
        },
        "/api/v1/payment/{id}/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["支付"],
                "summary": "查询支付状态",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "支付不存在"}}
            }
        },
        "/api/v1/payment/{id}/invoice": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["支付"],
                "summary": "重新创建支付账单",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "支付状态不允许"}, "503": {"description": "支付网关不可用"}}
            }
        },
        "/api/v1/payment/{id}/reconcile": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["支付"],
                "summary": "与网关对账",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "无权操作"}, "503": {"description": "支付网关不可用"}}
            }
        },
        "/api/v1/payment/{id}/webhooks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["支付"],
                "summary": "查询支付回调记录",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "无权访问"}, "404": {"description": "支付记录不存在"}}
            }
        },
        "/api/v1/payment/callback/xendit": {
            "post": {
                "security": [{"CallbackToken": []}],
                "tags": ["支付"],
                "summary": "Xendit 支付回调",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "已接收"}, "401": {"description": "回调令牌无效"}}
            }
        }
    }
}`

// SwaggerInfo 文档元信息，启动时可覆盖 Host 与 Version
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Court Booking API",
	Description:      "场地预订、订单与支付一致性服务",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
