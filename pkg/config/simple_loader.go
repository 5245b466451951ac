package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// Load decodes the YAML file at path into out. ${NAME} and ${NAME:-fallback}
// references are expanded from the environment first. Keys that out does
// not declare are rejected, so a misspelt registry or source entry fails
// instead of silently taking its default.
func Load(path string, out interface{}) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the caller's configuration
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").WithDetail("path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(data)))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").WithDetail("path", path)
	}
	return nil
}

// Save writes in as YAML to path.
func Save(path string, in interface{}) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(in); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file").WithDetail("path", path)
	}
	return nil
}

// expandEnv replaces ${NAME} with the value of NAME and ${NAME:-fallback}
// with fallback when NAME is unset or empty. Expanded values are not
// scanned again. An unterminated reference is kept as is.
func expandEnv(data []byte) []byte {
	src := string(data)
	var b strings.Builder
	b.Grow(len(src))
	for {
		start := strings.Index(src, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(src[start:], '}')
		if end < 0 {
			break
		}
		b.WriteString(src[:start])

		ref := src[start+2 : start+end]
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		value := os.Getenv(name)
		if value == "" && hasFallback {
			value = fallback
		}
		b.WriteString(value)
		src = src[start+end+1:]
	}
	b.WriteString(src)
	return []byte(b.String())
}
