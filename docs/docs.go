// Package docs embeds the OpenAPI document served at /swagger/doc.json
package docs

import _ "embed"

//go:embed swagger.json
var SwaggerJSON []byte
