package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LessonSync API",
        "description": "Coordinates cancellations and postponements of recurring group lessons.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Series", "description": "Recurring lessons and their effective occurrences"},
        {"name": "Changes", "description": "Cancel or postpone one occurrence, voting"},
        {"name": "Availability", "description": "Teacher windows for rescheduled lessons"},
        {"name": "Schedule", "description": "Weekly timetable and export"},
        {"name": "Authentication", "description": "Member tokens"},
        {"name": "Admin", "description": "Maintenance"}
    ],
    "paths": {
        "/series": {
            "get": {"tags": ["Series"], "summary": "List lesson series visible to the caller",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/series/{id}/status": {
            "get": {"tags": ["Series"], "summary": "Effective status of one occurrence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown series"}}}
        },
        "/series/{id}/occurrences": {
            "get": {"tags": ["Series"], "summary": "Upcoming occurrences of a series",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "days", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/series/{id}/eligibility": {
            "get": {"tags": ["Series"], "summary": "Whether an occurrence can still be changed",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/series/{id}/slots": {
            "get": {"tags": ["Series"], "summary": "Reschedule slots for an occurrence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "exclude_date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/series/{id}/overrides/{date}": {
            "delete": {"tags": ["Series"], "summary": "Remove the override of one occurrence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"204": {"description": "Restored"}, "403": {"description": "Forbidden"}, "404": {"description": "No override"}}}
        },
        "/overrides": {
            "get": {"tags": ["Series"], "summary": "Overrides touching a date range",
                "parameters": [
                    {"name": "start", "in": "query", "required": true, "type": "string"},
                    {"name": "end", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/changes": {
            "post": {"tags": ["Changes"], "summary": "Cancel or postpone one occurrence",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitChangeRequest"}}],
                "responses": {
                    "200": {"description": "Applied"},
                    "202": {"description": "Vote opened"},
                    "400": {"description": "Invalid payload"},
                    "409": {"description": "Occurrence already changed"},
                    "422": {"description": "Too late or slot not offered"}
                }}
        },
        "/changes/pending": {
            "get": {"tags": ["Changes"], "summary": "Change requests awaiting the caller's vote",
                "responses": {"200": {"description": "OK"}}}
        },
        "/changes/{id}/votes": {
            "post": {"tags": ["Changes"], "summary": "Approve or reject a change request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CastVoteRequest"}}
                ],
                "responses": {"200": {"description": "Vote recorded"}, "403": {"description": "Not a voter"}, "409": {"description": "Closed or already voted"}}}
        },
        "/votes/{token}": {
            "post": {"tags": ["Changes"], "summary": "Cast the vote encoded in a signed link", "security": [],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Vote recorded"}, "401": {"description": "Invalid link"}, "409": {"description": "Closed or already voted"}}}
        },
        "/availability": {
            "get": {"tags": ["Availability"], "summary": "The caller's availability windows", "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Availability"], "summary": "Declare or replace the window on a date",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetAvailabilityRequest"}}],
                "responses": {"200": {"description": "Saved"}, "400": {"description": "Invalid window"}}}
        },
        "/availability/{date}": {
            "delete": {"tags": ["Availability"], "summary": "Delete the window on a date",
                "parameters": [{"name": "date", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}, "404": {"description": "No window"}}}
        },
        "/schedule/weekly": {
            "get": {"tags": ["Schedule"], "summary": "Effective timetable of one week",
                "parameters": [{"name": "week", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/schedule/weekly/export": {
            "get": {"tags": ["Schedule"], "summary": "Download the weekly timetable",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "week", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File"}}}
        },
        "/auth/tokens": {
            "post": {"tags": ["Authentication"], "summary": "Issue a token for a member (admin)",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IssueTokenRequest"}}],
                "responses": {"201": {"description": "Issued"}, "404": {"description": "Unknown member"}}}
        },
        "/auth/me": {
            "get": {"tags": ["Authentication"], "summary": "Get current member", "responses": {"200": {"description": "OK"}}}
        },
        "/admin/requests/expire": {
            "post": {"tags": ["Admin"], "summary": "Expire pending requests past their deadline", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "SubmitChangeRequest": {
            "type": "object",
            "required": ["series_id", "date", "change_type"],
            "properties": {
                "series_id": {"type": "string"},
                "date": {"type": "string", "example": "2025-01-08"},
                "change_type": {"type": "string", "enum": ["cancel", "postpone"]},
                "new_date": {"type": "string"},
                "new_hour": {"type": "integer"},
                "new_minute": {"type": "integer"}
            }
        },
        "CastVoteRequest": {
            "type": "object",
            "required": ["approve"],
            "properties": {"approve": {"type": "boolean"}}
        },
        "SetAvailabilityRequest": {
            "type": "object",
            "required": ["date"],
            "properties": {
                "date": {"type": "string", "example": "10-01-2025"},
                "start_hour": {"type": "integer"},
                "end_hour": {"type": "integer"}
            }
        },
        "IssueTokenRequest": {
            "type": "object",
            "required": ["chat_id"],
            "properties": {"chat_id": {"type": "string"}}
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
