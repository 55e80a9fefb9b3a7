package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ClefBook API",
        "description": "Lesson booking and billing for independent music teachers",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session info"},
        {"name": "Teachers", "description": "Teacher profiles and rate cards"},
        {"name": "Availability", "description": "Weekly schedules, blocked intervals and slot computation"},
        {"name": "Lessons", "description": "One-off lesson booking and lifecycle"},
        {"name": "Recurring Slots", "description": "Weekly recurring bookings and their billing"},
        {"name": "Admin", "description": "Background jobs, health and billing administration"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/teachers": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List teachers",
                "parameters": [
                    {"name": "instrument", "in": "query", "type": "string"},
                    {"name": "active_only", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Teachers"],
                "summary": "Create teacher",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTeacherRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}": {
            "get": {
                "tags": ["Teachers"],
                "summary": "Get teacher",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Teachers"],
                "summary": "Update teacher",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTeacherRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/slots": {
            "get": {
                "tags": ["Availability"],
                "summary": "List bookable slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "description": "RFC3339, default now"},
                    {"name": "to", "in": "query", "type": "string", "description": "RFC3339, default from+7d"},
                    {"name": "timezone", "in": "query", "type": "string", "description": "IANA timezone, default UTC"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Get weekly availability",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Availability"],
                "summary": "Replace weekly availability",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/blocked": {
            "post": {
                "tags": ["Availability"],
                "summary": "Block a time interval",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BlockTimeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/blocked/{bid}": {
            "delete": {
                "tags": ["Availability"],
                "summary": "Remove a blocked interval",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "bid", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/lessons": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Book a one-off lesson",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookLessonRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot taken or time blocked"}
                }
            }
        },
        "/lessons/{id}/status": {
            "patch": {
                "tags": ["Lessons"],
                "summary": "Update lesson status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateLessonStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition"}
                }
            }
        },
        "/teachers/{id}/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "List a teacher's lessons",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/recurring-slots": {
            "post": {
                "tags": ["Recurring Slots"],
                "summary": "Book a recurring weekly slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookRecurringSlotRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot taken"}
                }
            }
        },
        "/recurring-slots/{id}": {
            "delete": {
                "tags": ["Recurring Slots"],
                "summary": "Cancel a recurring slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Cancelled with refund detail", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already cancelled"}
                }
            }
        },
        "/recurring-slots/{id}/billing-preview": {
            "get": {
                "tags": ["Recurring Slots"],
                "summary": "Preview a month's billing",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "month", "in": "query", "required": true, "type": "string", "description": "YYYY-MM"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/recurring-slots": {
            "get": {
                "tags": ["Recurring Slots"],
                "summary": "List a teacher's recurring slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/jobs": {
            "get": {
                "tags": ["Admin"],
                "summary": "List background job executions",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/jobs/lesson-generation": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the lesson generation job now",
                "responses": {
                    "200": {"description": "Job result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/jobs/invoice-generation": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the invoice generation job now",
                "responses": {
                    "200": {"description": "Job result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/health": {
            "get": {
                "tags": ["Admin"],
                "summary": "System health including job freshness",
                "responses": {
                    "200": {"description": "Healthy", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Unhealthy"}
                }
            }
        },
        "/admin/billing": {
            "get": {
                "tags": ["Admin"],
                "summary": "List billing records for a month",
                "parameters": [
                    {"name": "month", "in": "query", "required": true, "type": "string", "description": "YYYY-MM"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/billing/subscriptions/{id}": {
            "get": {
                "tags": ["Admin"],
                "summary": "List billing records for a subscription",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/billing/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export a month's billing records",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "month", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "description": "csv or pdf"}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateTeacherRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "instrument": {"type": "string"},
                "timezone": {"type": "string"},
                "rate_30_cents": {"type": "integer"},
                "rate_60_cents": {"type": "integer"},
                "advance_booking_days": {"type": "integer"}
            },
            "required": ["email", "full_name"]
        },
        "UpdateTeacherRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "instrument": {"type": "string"},
                "timezone": {"type": "string"},
                "rate_30_cents": {"type": "integer"},
                "rate_60_cents": {"type": "integer"},
                "advance_booking_days": {"type": "integer"},
                "active": {"type": "boolean"}
            }
        },
        "ReplaceAvailabilityRequest": {
            "type": "object",
            "properties": {
                "windows": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/WeeklyWindow"}
                }
            }
        },
        "WeeklyWindow": {
            "type": "object",
            "properties": {
                "weekday": {"type": "integer", "description": "0=Sunday .. 6=Saturday"},
                "start_time": {"type": "string", "description": "HH:MM"},
                "end_time": {"type": "string", "description": "HH:MM"}
            }
        },
        "BlockTimeRequest": {
            "type": "object",
            "properties": {
                "start_at": {"type": "string"},
                "end_at": {"type": "string"},
                "reason": {"type": "string"}
            },
            "required": ["start_at", "end_at"]
        },
        "BookLessonRequest": {
            "type": "object",
            "properties": {
                "teacher_id": {"type": "string"},
                "student_id": {"type": "string"},
                "start_at": {"type": "string"},
                "duration_min": {"type": "integer", "enum": [30, 60]}
            },
            "required": ["teacher_id", "student_id", "start_at", "duration_min"]
        },
        "UpdateLessonStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["SCHEDULED", "COMPLETED", "MISSED", "CANCELLED"]}
            },
            "required": ["status"]
        },
        "BookRecurringSlotRequest": {
            "type": "object",
            "properties": {
                "teacher_id": {"type": "string"},
                "student_id": {"type": "string"},
                "weekday": {"type": "integer"},
                "start_time": {"type": "string", "description": "HH:MM in the teacher's timezone"},
                "duration_min": {"type": "integer", "enum": [30, 60]},
                "monthly_rate_cents": {"type": "integer"}
            },
            "required": ["teacher_id", "student_id", "start_time", "duration_min"]
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
