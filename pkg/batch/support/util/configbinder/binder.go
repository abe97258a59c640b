// Package configbinder decodes loosely typed configuration maps (named storage
// and database connections, job definitions) into typed structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds props onto target using the target's `yaml` tags.
// Strings are weakly converted to numbers, booleans and durations, so values
// that arrived through environment variables decode the same way as YAML.
func BindProperties(props map[string]interface{}, target interface{}) error {
	if len(props) == 0 {
		return nil
	}

	config := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(props); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}

	return nil
}

// BindStringProperties is BindProperties for flat string maps.
func BindStringProperties(props map[string]string, target interface{}) error {
	intermediate := make(map[string]interface{}, len(props))
	for k, v := range props {
		intermediate[k] = v
	}
	return BindProperties(intermediate, target)
}
