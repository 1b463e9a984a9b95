package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

// Identifier types marshal as UUID strings rather than byte arrays.
var typeSchemas = map[reflect.Type]*jsonschema.Schema{
	reflect.TypeFor[id.TenantID]():   {Type: "string", Format: "uuid"},
	reflect.TypeFor[id.UserID]():     {Type: "string", Format: "uuid"},
	reflect.TypeFor[id.ClientID]():   {Type: "string", Format: "uuid"},
	reflect.TypeFor[id.TaskID]():     {Type: "string", Format: "uuid"},
	reflect.TypeFor[id.ActivityID](): {Type: "string", Format: "uuid"},
}

// SchemaFor infers a JSON schema from T's json and jsonschema struct tags.
// It panics on types that cannot be described, which is a programming error
// caught at startup.
func SchemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](&jsonschema.ForOptions{TypeSchemas: typeSchemas})
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %T: %v", *new(T), err))
	}
	return schema
}

// Typed adapts a handler taking decoded arguments.
func Typed[T any](fn func(ctx context.Context, auth id.AuthContext, in T) (any, error)) Handler {
	return func(ctx context.Context, auth id.AuthContext, args json.RawMessage) (any, error) {
		var in T
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "arguments do not match the tool input")
		}
		return fn(ctx, auth, in)
	}
}
