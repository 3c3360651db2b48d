// Package docs registers the swagger document served under /swagger/.
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
        "/v1/campaigns": {
            "post": {
                "summary": "Create a campaign",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCampaignRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/CampaignResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/campaigns/count": {
            "get": {
                "summary": "Count campaigns",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CampaignCountResponse"}}
                }
            }
        },
        "/v1/campaigns/{id}": {
            "get": {
                "summary": "Get a campaign snapshot",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CampaignResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/campaigns/{id}/candidates": {
            "post": {
                "summary": "Append a candidate (owner only)",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCandidateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/CandidateResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/campaigns/{id}/candidates/{index}": {
            "get": {
                "summary": "Get one candidate",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "index", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CandidateResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/campaigns/{id}/votes": {
            "post": {
                "summary": "Cast a vote",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "X-Voter-Id", "in": "header", "required": true},
                    {"type": "string", "name": "X-Admission-Grant", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CastVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/VoteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/campaigns/{id}/status": {
            "get": {
                "summary": "Campaign window status",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/StatusResponse"}}
                }
            }
        },
        "/v1/campaigns/{id}/voters/{voter_id}": {
            "get": {
                "summary": "Voter eligibility and participation",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "voter_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/VoterStandingResponse"}}
                }
            }
        },
        "/v1/campaigns/{id}/results": {
            "get": {
                "summary": "Per-candidate results",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResultsResponse"}}
                }
            }
        },
        "/v1/campaigns/{id}/events": {
            "get": {
                "summary": "Server-sent vote_cast events",
                "produces": ["text/event-stream"],
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/voters/{voter_id}/campaigns": {
            "get": {
                "summary": "Campaigns a voter may vote in",
                "parameters": [{"type": "string", "name": "voter_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CampaignListResponse"}}
                }
            }
        },
        "/v1/owners/{owner_id}/campaigns": {
            "get": {
                "summary": "Campaigns created by an owner",
                "parameters": [{"type": "string", "name": "owner_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CampaignListResponse"}}
                }
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "CreateCampaignRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "candidate_names": {"type": "array", "items": {"type": "string"}},
                "duration_minutes": {"type": "integer"},
                "start_time": {"type": "string", "format": "date-time"},
                "display_date": {"type": "string"},
                "allow_list": {"type": "array", "items": {"type": "string"}},
                "is_public": {"type": "boolean"}
            }
        },
        "CandidateResponse": {
            "type": "object",
            "properties": {"index": {"type": "integer"}, "name": {"type": "string"}, "vote_count": {"type": "integer"}}
        },
        "CampaignResponse": {
            "type": "object",
            "properties": {
                "campaign_id": {"type": "integer"},
                "handle": {"type": "string"},
                "owner": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "display_date": {"type": "string"},
                "start_time": {"type": "string", "format": "date-time"},
                "end_time": {"type": "string", "format": "date-time"},
                "duration_minutes": {"type": "integer"},
                "status": {"type": "string", "enum": ["scheduled", "open", "closed"]},
                "is_public": {"type": "boolean"},
                "allow_list_size": {"type": "integer"},
                "candidates": {"type": "array", "items": {"$ref": "#/definitions/CandidateResponse"}},
                "total_votes": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "CampaignCountResponse": {
            "type": "object",
            "properties": {"count": {"type": "integer"}}
        },
        "AddCandidateRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}}
        },
        "CastVoteRequest": {
            "type": "object",
            "properties": {"candidate_index": {"type": "integer"}}
        },
        "VoteResponse": {
            "type": "object",
            "properties": {
                "campaign_id": {"type": "integer"},
                "candidate_index": {"type": "integer"},
                "new_vote_count": {"type": "integer"},
                "total_votes": {"type": "integer"},
                "cast_at": {"type": "string", "format": "date-time"}
            }
        },
        "StatusResponse": {
            "type": "object",
            "properties": {
                "campaign_id": {"type": "integer"},
                "status": {"type": "string"},
                "start_time": {"type": "string", "format": "date-time"},
                "end_time": {"type": "string", "format": "date-time"},
                "remaining_seconds": {"type": "integer"},
                "candidate_count": {"type": "integer"},
                "total_votes": {"type": "integer"},
                "as_of": {"type": "string", "format": "date-time"}
            }
        },
        "VoterStandingResponse": {
            "type": "object",
            "properties": {
                "campaign_id": {"type": "integer"},
                "voter_id": {"type": "string"},
                "is_eligible": {"type": "boolean"},
                "has_voted": {"type": "boolean"},
                "is_owner": {"type": "boolean"}
            }
        },
        "ResultsResponse": {
            "type": "object",
            "properties": {
                "campaign_id": {"type": "integer"},
                "status": {"type": "string"},
                "candidates": {"type": "array", "items": {"$ref": "#/definitions/CandidateResponse"}},
                "total_votes": {"type": "integer"},
                "source": {"type": "string", "enum": ["projection", "ledger"]},
                "as_of": {"type": "string", "format": "date-time"}
            }
        },
        "CampaignListResponse": {
            "type": "object",
            "properties": {"campaign_ids": {"type": "array", "items": {"type": "integer"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "TrueVote campaign ledger API",
	Description:      "Campaign registry, admission-gated voting and live results.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
