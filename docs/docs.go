// Package docs registers the OpenAPI description of the referendum API with swag.
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
        "/runs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "List all runs",
                "responses": {"200": {"description": "List of runs"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Start a run",
                "parameters": [
                    {"description": "Run definition", "name": "run", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RunSpec"}}
                ],
                "responses": {"202": {"description": "Run started"}, "400": {"description": "Invalid request payload"}}
            }
        },
        "/runs/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Run details"}, "404": {"description": "Run not found"}}
            }
        },
        "/runs/{id}/results": {
            "get": {
                "produces": ["application/json"],
                "tags": ["results"],
                "summary": "Get regional results",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Sort field (code_reg, name_reg, registered, ratio)", "name": "sort", "in": "query"},
                    {"type": "string", "description": "asc or desc", "name": "order", "in": "query"}
                ],
                "responses": {"200": {"description": "Regional results; ratio is null when undefined"}}
            }
        },
        "/runs/{id}/map": {
            "get": {
                "produces": ["application/geo+json"],
                "tags": ["results"],
                "summary": "Get results as a GeoJSON FeatureCollection",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "FeatureCollection"}}
            }
        },
        "/runs/{id}/diagnostics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get stage metrics and join drop counts",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Stage metrics"}}
            }
        },
        "/runs/{id}/errors": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run errors",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Run errors"}}
            }
        },
        "/runs/{id}/retry": {
            "post": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Retry run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"202": {"description": "Retry initiated"}, "404": {"description": "Run not found"}}
            }
        }
    },
    "definitions": {
        "model.Sources": {
            "type": "object",
            "properties": {
                "regions": {"type": "string"},
                "departments": {"type": "string"},
                "ballots": {"type": "string"},
                "geometries": {"type": "string"}
            }
        },
        "model.Export": {
            "type": "object",
            "properties": {
                "db": {"type": "boolean"},
                "files": {"type": "array", "items": {"type": "string"}},
                "outputDir": {"type": "string"}
            }
        },
        "model.RunSpec": {
            "type": "object",
            "properties": {
                "sources": {"$ref": "#/definitions/model.Sources"},
                "ballotSeparator": {"type": "string"},
                "encoding": {"type": "string"},
                "export": {"$ref": "#/definitions/model.Export"},
                "aggregationWorkers": {"type": "integer"},
                "jobTimeout": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Referendum Pipeline API",
	Description:      "Runs the referendum pipeline and serves regional results for choropleth rendering.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
