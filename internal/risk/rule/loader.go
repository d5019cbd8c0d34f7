package rule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML list of rules and compiles each of them.
//
//	- name: suspiciously cheap for a recent bike
//	  when: "has_claim && has_age && age < 3 && claimed_price < predicted_price * 0.5"
//	  then: 0.3
func Parse(content []byte) ([]Rule, error) {
	rules := []Rule{}
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return nil, err
	}

	for i := range rules {
		env, err := NewEnv()
		if err != nil {
			return nil, err
		}
		if err = rules[i].Init(env); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}

	return rules, nil
}

// LoadFromFile reads and compiles rules from a YAML file.
func LoadFromFile(file string) ([]Rule, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}
