package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON built from the content descriptors
func RegisterSwagger(r gin.IRouter, descs []*content.Descriptor) {
	doc := openAPI(descs)
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})
	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, doc)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>havacilik-api Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

type obj = map[string]interface{}

func op(summary string, codes ...string) obj {
	resp := obj{}
	for _, c := range codes {
		n, _ := strconv.Atoi(c)
		resp[c] = obj{"description": http.StatusText(n)}
	}
	return obj{"summary": summary, "responses": resp}
}

func schemaFor(d *content.Descriptor) obj {
	props := obj{}
	var required []string
	for _, f := range d.Fields {
		var s obj
		if f.Type == content.ListField {
			s = obj{"type": "array", "items": obj{"type": "string"}}
		} else {
			s = obj{"type": "string"}
		}
		props[f.Name] = s
		if f.Localized {
			props[f.WireSecondary()] = s
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	props["slug"] = obj{"type": "string"}
	props["isActive"] = obj{"type": "boolean"}
	props["isFeatured"] = obj{"type": "boolean"}
	props["existingImages"] = obj{"type": "array", "items": obj{"type": "string"}}
	if d.Ordered {
		props["order"] = obj{"type": "integer"}
	}
	return obj{"type": "object", "properties": props, "required": required}
}

func openAPI(descs []*content.Descriptor) obj {
	paths := obj{
		"/auth/login":   obj{"post": op("Admin login with email and password", "200", "401")},
		"/auth/refresh": obj{"post": op("Rotate refresh token", "200", "401")},
		"/auth/logout":  obj{"post": op("Logout and revoke tokens", "200")},
		"/api/v1/me":    obj{"get": op("Current admin", "200", "401")},
		"/api/contact-info": obj{
			"get": op("Contact card", "200"),
			"put": op("Update contact card", "200", "400", "401"),
		},
		"/api/messages": obj{
			"post": op("Submit contact form", "201", "400", "429"),
			"get":  op("List inbox", "200", "401"),
		},
		"/api/messages/{id}":      obj{"get": op("Get message", "200", "404"), "delete": op("Delete message", "204", "404")},
		"/api/messages/{id}/read": obj{"patch": op("Mark read or unread", "200", "404")},
		"/uploads/{key}":          obj{"get": op("Uploaded image", "200", "404")},
		"/health":                 obj{"get": op("Liveness check", "200")},
		"/ready":                  obj{"get": op("Readiness check", "200", "503")},
	}
	schemas := obj{}
	for _, d := range descs {
		name := string(d.Kind)
		schemas[name] = schemaFor(d)
		ref := obj{"$ref": "#/components/schemas/" + name}
		body := obj{"content": obj{
			"application/json":    obj{"schema": ref},
			"multipart/form-data": obj{"schema": ref},
		}}
		create := op("Create "+name, "201", "400", "401", "409")
		create["requestBody"] = body
		update := op("Update "+name, "200", "400", "401", "404", "409")
		update["requestBody"] = body
		base := "/api/" + d.Collection
		paths[base] = obj{"get": op("List "+name, "200", "400"), "post": create}
		paths[base+"/{idOrSlug}"] = obj{
			"get":    op("Get "+name+" by id or slug", "200", "404"),
			"put":    update,
			"delete": op("Delete "+name, "200", "401", "404"),
		}
	}
	return obj{
		"openapi":    "3.0.0",
		"info":       obj{"title": "havacilik-api", "version": "v1.0.0"},
		"paths":      paths,
		"components": obj{"schemas": schemas},
	}
}
