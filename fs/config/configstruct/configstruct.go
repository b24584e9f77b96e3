// Package configstruct fills option structures from a configmap
package configstruct

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rclone/ftpfetch/fs/config/configmap"
)

var matchUpper = regexp.MustCompile("([A-Z]+)")

// camelToSnake converts CamelCase to snake_case
func camelToSnake(in string) string {
	out := matchUpper.ReplaceAllString(in, "_$1")
	out = strings.ToLower(out)
	out = strings.Trim(out, "_")
	return out
}

// parse turns in into a value of the type def.
//
// Strings pass through.  Everything else is read with Sscanln so the
// field types must implement fmt.Scanner or be a builtin.
func parse(def reflect.Type, in string) (reflect.Value, error) {
	if def.Kind() == reflect.String {
		return reflect.ValueOf(in).Convert(def), nil
	}
	o := reflect.New(def)
	n, err := fmt.Sscanln(in, o.Interface())
	if err != nil {
		return reflect.Value{}, err
	}
	if n != 1 {
		return reflect.Value{}, errors.New("no items parsed")
	}
	return o.Elem(), nil
}

// Item describes a single entry in the options structure
type Item struct {
	Name  string // snake_case
	Field string // CamelCase
	Num   int    // number of the field in the struct
	Value interface{}
}

// Items parses the opt struct and returns a slice of Item objects.
//
// The config name is read from a `config:"name"` struct tag, or is
// the field name converted to snake_case.
func Items(opt interface{}) (items []Item, err error) {
	def := reflect.ValueOf(opt)
	if def.Kind() != reflect.Ptr || def.Elem().Kind() != reflect.Struct {
		return nil, errors.New("argument must be a pointer to a struct")
	}
	def = def.Elem()
	defType := def.Type()
	for i := 0; i < def.NumField(); i++ {
		field := defType.Field(i)
		if field.PkgPath != "" {
			continue
		}
		configName, ok := field.Tag.Lookup("config")
		if !ok {
			configName = camelToSnake(field.Name)
		}
		if configName == "-" {
			continue
		}
		items = append(items, Item{
			Name:  configName,
			Field: field.Name,
			Num:   i,
			Value: def.Field(i).Interface(),
		})
	}
	return items, nil
}

// Set looks up each field of opt in config and overwrites the ones
// which are found.  Fields which aren't found keep their value, so
// fill opt with the defaults first.
//
// An empty string counts as unset for types which can't parse it.
func Set(config configmap.Getter, opt interface{}) error {
	items, err := Items(opt)
	if err != nil {
		return err
	}
	optStruct := reflect.ValueOf(opt).Elem()
	for _, item := range items {
		configValue, ok := config.Get(item.Name)
		if !ok {
			continue
		}
		field := optStruct.Field(item.Num)
		newValue, err := parse(field.Type(), configValue)
		if err != nil {
			if configValue == "" {
				continue
			}
			return errors.Wrapf(err, "couldn't parse config item %q = %q as %T", item.Name, configValue, item.Value)
		}
		field.Set(newValue)
	}
	return nil
}
