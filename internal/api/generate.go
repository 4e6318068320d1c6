// Package api holds the HTTP surface of the tile merge server. The types and
// chi routing in api.gen.go are generated from openapi.yaml.
package api

//go:generate go tool oapi-codegen -config cfg.yaml openapi.yaml
