package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "PPDB Admissions API",
        "description": "Ranking, selection, waitlist and draft endpoints of the school admissions service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Ranking", "description": "Ranking, finalization and waitlist of an admission path"},
        {"name": "Admission Paths", "description": "Admission path quota"},
        {"name": "Applications", "description": "Parent drafts and withdrawal"},
        {"name": "Scores", "description": "Interview and test scores"}
    ],
    "paths": {
        "/admission-paths/{pathId}/ranking": {
            "get": {
                "tags": ["Ranking"],
                "summary": "Current ranking of an admission path",
                "parameters": [
                    {"name": "pathId", "in": "path", "required": true, "type": "string"},
                    {"name": "accepted", "in": "query", "type": "integer"},
                    {"name": "reserved", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown path", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admission-paths/{pathId}/ranking/finalize": {
            "post": {
                "tags": ["Ranking"],
                "summary": "Finalize the ranking of an admission path",
                "parameters": [
                    {"name": "pathId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FinalizeRankingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid quotas", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent finalization", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Capacity exceeded or no candidates", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admission-paths/{pathId}/selection-results/latest": {
            "get": {
                "tags": ["Ranking"],
                "summary": "Latest selection result with details",
                "parameters": [
                    {"name": "pathId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admission-paths/{pathId}/selection-results/latest/export": {
            "get": {
                "tags": ["Ranking"],
                "summary": "Download the latest selection result",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "pathId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/admission-paths/{pathId}/vacancies": {
            "post": {
                "tags": ["Ranking"],
                "summary": "Promote the best waitlisted candidate into a free slot",
                "parameters": [
                    {"name": "pathId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admission-paths/{pathId}/quota": {
            "patch": {
                "tags": ["Admission Paths"],
                "summary": "Change the quota of an admission path",
                "parameters": [
                    {"name": "pathId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateQuotaRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Path already finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{applicationId}/draft": {
            "get": {
                "tags": ["Applications"],
                "summary": "Load the draft of an application",
                "parameters": [
                    {"name": "applicationId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "headers": {"X-Resource-Version": {"type": "integer"}},
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                }
            },
            "patch": {
                "tags": ["Applications"],
                "summary": "Save part of a draft",
                "parameters": [
                    {"name": "applicationId", "in": "path", "required": true, "type": "string"},
                    {"name": "If-Match", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DraftPatchRequest"}}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "headers": {"X-Resource-Version": {"type": "integer"}},
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {"description": "Missing version or invalid fields", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Stale version, meta.currentVersion holds the stored one", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{applicationId}/withdraw": {
            "post": {
                "tags": ["Applications"],
                "summary": "Withdraw an accepted application",
                "parameters": [
                    {"name": "applicationId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Application is not accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{applicationId}/score": {
            "post": {
                "tags": ["Scores"],
                "summary": "Record the score of a verified application",
                "parameters": [
                    {"name": "applicationId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveScoreRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Score already finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/{scoreId}/unlock": {
            "post": {
                "tags": ["Scores"],
                "summary": "Reopen a finalized score",
                "parameters": [
                    {"name": "scoreId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UnlockScoreRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "FinalizeRankingRequest": {
            "type": "object",
            "required": ["acceptedQuota", "reservedQuota"],
            "properties": {
                "acceptedQuota": {"type": "integer", "minimum": 0},
                "reservedQuota": {"type": "integer", "minimum": 0}
            }
        },
        "UpdateQuotaRequest": {
            "type": "object",
            "properties": {
                "quota": {"type": "integer", "minimum": 1}
            }
        },
        "DraftPatchRequest": {
            "type": "object",
            "properties": {
                "version": {"type": "integer"},
                "customFieldValues": {"type": "object"},
                "answeredCustomFields": {"type": "array", "items": {"type": "string"}},
                "currentStep": {"type": "integer"},
                "childFullName": {"type": "string"},
                "childDob": {"type": "string", "format": "date"},
                "parentFullName": {"type": "string"},
                "parentPhone": {"type": "string"},
                "distanceM": {"type": "number", "minimum": 0}
            }
        },
        "SaveScoreRequest": {
            "type": "object",
            "properties": {
                "score": {"type": "number", "minimum": 0, "maximum": 100},
                "notes": {"type": "string"},
                "finalize": {"type": "boolean"}
            }
        },
        "UnlockScoreRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string", "minLength": 10}
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
