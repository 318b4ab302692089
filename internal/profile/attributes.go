package profile

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hardscan/hardscan/internal/errors"
)

// attrPattern matches ${attr:name} placeholders in check params and
// remediation commands
var attrPattern = regexp.MustCompile(`\$\{attr:([a-zA-Z0-9_.-]+)\}`)

// LoadAttributesFile reads a flat hash of attribute overrides
// (name -> value) from a YAML file
func LoadAttributesFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileOperation, "reading attributes file %s: %v", path, err)
	}

	overrides := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, errors.Wrap(errors.ErrParseFailure, "parsing attributes file %s: %v", path, err)
	}
	return overrides, nil
}

// ResolveAttributes computes the effective attribute values for a profile:
// declared defaults, overridden by the attributes file, overridden by CLI
// name=value pairs. Overrides for undeclared attributes are rejected so
// typos fail loudly.
func ResolveAttributes(p *Profile, fileOverrides map[string]interface{}, cliPairs map[string]string) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(p.Attributes))
	for name, spec := range p.Attributes {
		resolved[name] = spec.Default
	}

	for name, value := range fileOverrides {
		if _, declared := p.Attributes[name]; !declared {
			return nil, errors.Wrap(errors.ErrInvalidInput, "attribute %q is not declared by profile %s", name, p.Name)
		}
		resolved[name] = value
	}

	for name, raw := range cliPairs {
		spec, declared := p.Attributes[name]
		if !declared {
			return nil, errors.Wrap(errors.ErrInvalidInput, "attribute %q is not declared by profile %s", name, p.Name)
		}
		value, err := coerce(raw, spec.Type)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidInput, "attribute %q: %v", name, err)
		}
		resolved[name] = value
	}

	return resolved, nil
}

// coerce converts a CLI string value to the attribute's declared type
func coerce(raw, typ string) (interface{}, error) {
	switch typ {
	case "", "string":
		return raw, nil
	case "number":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case "boolean":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return b, nil
	case "array":
		parts := strings.Split(raw, ",")
		out := make([]interface{}, len(parts))
		for i, part := range parts {
			out[i] = strings.TrimSpace(part)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown attribute type %q", typ)
	}
}

// ApplyAttributes substitutes ${attr:name} placeholders in check params and
// remediation commands with resolved values. Unresolved names are errors.
func ApplyAttributes(p *Profile, attrs map[string]interface{}) error {
	for ci := range p.Controls {
		control := &p.Controls[ci]

		for si := range control.Checks {
			substituted, err := substituteValue(control.Checks[si].Params, attrs)
			if err != nil {
				return errors.Wrap(err, "control %s", control.ID)
			}
			if m, ok := substituted.(map[string]interface{}); ok {
				control.Checks[si].Params = m
			}
		}

		for i, cmd := range control.Remediation.Commands {
			out, err := substituteString(cmd, attrs)
			if err != nil {
				return errors.Wrap(err, "control %s remediation", control.ID)
			}
			control.Remediation.Commands[i] = out
		}
	}
	return nil
}

// substituteValue walks params recursively, substituting placeholders in
// every string it finds
func substituteValue(v interface{}, attrs map[string]interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return substituteTyped(val, attrs)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			sub, err := substituteValue(inner, attrs)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			sub, err := substituteValue(inner, attrs)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	default:
		return v, nil
	}
}

// substituteTyped replaces placeholders in a string. When the whole string
// is a single placeholder the attribute's typed value is preserved, so
// numeric and boolean params survive substitution.
func substituteTyped(s string, attrs map[string]interface{}) (interface{}, error) {
	match := attrPattern.FindStringSubmatch(s)
	if match != nil && match[0] == s {
		value, ok := attrs[match[1]]
		if !ok {
			return nil, errors.Wrap(errors.ErrInvalidProfile, "unresolved attribute %q", match[1])
		}
		return value, nil
	}
	return substituteString(s, attrs)
}

// substituteString replaces embedded placeholders with their string form
func substituteString(s string, attrs map[string]interface{}) (string, error) {
	var substErr error
	out := attrPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := attrPattern.FindStringSubmatch(m)[1]
		value, ok := attrs[name]
		if !ok {
			substErr = errors.Wrap(errors.ErrInvalidProfile, "unresolved attribute %q", name)
			return m
		}
		return fmt.Sprintf("%v", value)
	})
	if substErr != nil {
		return "", substErr
	}
	return out, nil
}
