package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Parse an INI or YAML file and construct a config. Initialize the config
// with values from defaultConfig.
//
// YAML files use the same layout as INI ones: a mapping of section names to
// mappings of keys.
func ReadConfig(path string, defaultConfig *Config) (Config, error) {
	var file *ini.File
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		file, err = loadYAML(path)
	default:
		file, err = ini.Load(path)
	}

	if err != nil {
		return *defaultConfig, fmt.Errorf("Failed to open config file: %v, %w",
			path, err)
	}

	return applyConfig(file, defaultConfig)
}

func loadYAML(path string) (*ini.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sections map[string]map[string]interface{}

	err = yaml.Unmarshal(data, &sections)
	if err != nil {
		return nil, err
	}

	file := ini.Empty()

	for name, keys := range sections {
		section, err := file.NewSection(name)
		if err != nil {
			return nil, err
		}

		for key, value := range keys {
			if value == nil {
				value = ""
			}

			_, err = section.NewKey(key, fmt.Sprint(value))
			if err != nil {
				return nil, err
			}
		}
	}

	return file, nil
}

func applyConfig(file *ini.File, defaultConfig *Config) (Config, error) {
	config := *defaultConfig

	configType := reflect.TypeOf(config)
	configValue := reflect.ValueOf(&config).Elem()

	for i := 0; i < configType.NumField(); i++ {
		field := configType.Field(i)
		value := configValue.Field(i)

		sectionName := field.Tag.Get("section")
		if len(sectionName) == 0 {
			continue
		}

		section, err := file.GetSection(sectionName)
		if err != nil {
			continue
		}

		key, err := section.GetKey(field.Name)
		if err != nil {
			continue
		}

		var newValue reflect.Value

		switch field.Type.Kind() {
		case reflect.Uint:
			newValue = reflect.ValueOf(key.MustUint(uint(value.Uint())))
		case reflect.Uint64:
			newValue = reflect.ValueOf(key.MustUint64(value.Uint()))
		case reflect.Int:
			newValue = reflect.ValueOf(key.MustInt(int(value.Int())))
		case reflect.Int64:
			newValue = reflect.ValueOf(key.MustInt64(value.Int()))
		case reflect.Bool:
			newValue = reflect.ValueOf(key.MustBool(value.Bool()))
		case reflect.Float64:
			newValue = reflect.ValueOf(key.MustFloat64(value.Float()))
		case reflect.String:
			newValue = reflect.ValueOf(key.String())
		default:
			return config, fmt.Errorf("Parser for type %s not implemented",
				field.Type.Kind().String())
		}

		value.Set(newValue)
	}

	return config, nil
}
