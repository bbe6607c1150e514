package fab

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParamSource is a read-only table of runtime parameters keyed by dotted
// names such as "fab.do_initval"
type ParamSource interface {
	Lookup(key string) (value string, ok bool)
}

// Params is an in-memory ParamSource
type Params map[string]string

var _ ParamSource = Params(nil)

// Lookup implements ParamSource
func (p Params) Lookup(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Keys returns the parameter names in sorted order
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadParams reads a YAML document into Params. Nested mappings are
// flattened into dotted keys, so
//
//	fab:
//	  do_initval: true
//
// yields "fab.do_initval" = "true". Sequences become space separated
// values.
func LoadParams(r io.Reader) (Params, error) {
	doc := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading parameters: %w", err)
	}
	p := Params{}
	if err := flattenParams(p, "", doc); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadParamsFile reads a YAML parameter file from disk
func LoadParamsFile(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadParams(f)
}

func flattenParams(dst Params, prefix string, v interface{}) error {
	switch x := v.(type) {
	case map[string]interface{}:
		for k, child := range x {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flattenParams(dst, key, child); err != nil {
				return err
			}
		}
	case []interface{}:
		parts := make([]string, len(x))
		for i, el := range x {
			switch el.(type) {
			case map[string]interface{}, []interface{}:
				return fmt.Errorf("parameter %q: element %d must be a scalar", prefix, i)
			}
			parts[i] = fmt.Sprint(el)
		}
		dst[prefix] = strings.Join(parts, " ")
	case nil:
		dst[prefix] = ""
	default:
		dst[prefix] = fmt.Sprint(x)
	}
	return nil
}

// EnvParams looks parameters up in the process environment. The key
// "fab.do_initval" is read from FAB_DO_INITVAL.
type EnvParams struct{}

var _ ParamSource = EnvParams{}

// Lookup implements ParamSource
func (EnvParams) Lookup(key string) (string, bool) {
	return os.LookupEnv(strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
}

// Chain searches sources in order and returns the first non-blank value,
// so an empty FAB_DO_INITVAL falls through to a parameter file
type Chain []ParamSource

var _ ParamSource = Chain(nil)

// Lookup implements ParamSource
func (c Chain) Lookup(key string) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
