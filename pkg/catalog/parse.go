package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared schema engine. Struct tags on the document
// types are the schema.
var validate = validator.New()

// Parse reads one document of the given kind from r, then validates it
// against the document schema. Syntax errors carry the byte offset;
// schema violations carry a document pointer and the violated rule
// keyword. The reader is consumed but not closed.
func Parse(r io.Reader, kind Kind) (*Document, error) {
	dec := json.NewDecoder(r)

	switch kind {
	case KindHome:
		var home Home
		if err := dec.Decode(&home); err != nil {
			return nil, syntaxError(err)
		}
		if err := validateDocument(&home); err != nil {
			return nil, err
		}
		return &Document{Kind: KindHome, Home: &home}, nil

	case KindSet:
		var set Set
		if err := dec.Decode(&set); err != nil {
			return nil, syntaxError(err)
		}
		if err := validateDocument(&set); err != nil {
			return nil, err
		}
		return &Document{Kind: KindSet, Set: &set}, nil

	default:
		return nil, fmt.Errorf("catalog: unknown document kind %d", kind)
	}
}

// syntaxError normalizes json decoding failures into diagnostics that
// name the offending location.
func syntaxError(err error) error {
	switch e := err.(type) {
	case *json.SyntaxError:
		return fmt.Errorf("catalog: parse error at offset %d: %v", e.Offset, e)
	case *json.UnmarshalTypeError:
		return fmt.Errorf("catalog: parse error at offset %d: field %q: %v", e.Offset, e.Field, e)
	default:
		return fmt.Errorf("catalog: parse error: %v", err)
	}
}

// validateDocument runs schema validation and renders the first
// violation as "document pointer: <ptr>; keyword: <rule>".
func validateDocument(doc any) error {
	err := validate.Struct(doc)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("catalog: validation error: document pointer: %s; keyword: %s",
			documentPointer(fe.Namespace()), fe.Tag())
	}
	return fmt.Errorf("catalog: validation error: %v", err)
}

// documentPointer converts a validator namespace like
// "Home.Links[0].Href" into a JSON-pointer style path "/links/0/href".
// The document types keep json tags equal to the lowercased field names,
// which is what makes this mapping hold.
func documentPointer(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // drop the root struct name
	}

	var b strings.Builder
	for _, part := range parts {
		name := part
		if i := strings.IndexByte(part, '['); i >= 0 {
			name = part[:i]
			index := strings.TrimSuffix(part[i+1:], "]")
			b.WriteByte('/')
			b.WriteString(strings.ToLower(name))
			b.WriteByte('/')
			b.WriteString(index)
			continue
		}
		b.WriteByte('/')
		b.WriteString(strings.ToLower(name))
	}
	return b.String()
}
