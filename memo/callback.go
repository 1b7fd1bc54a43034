package memo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// CallbackKey is the memo key the IBC module reads to find the contract
// that receives the packet's lifecycle callback.
const CallbackKey = "ibc_callback"

var ErrInvalidMemo = errors.New("invalid memo")

// InjectCallback sets "ibc_callback" to contract in memo. An empty memo is
// treated as {}. A memo that is not a JSON object is rejected. An existing
// callback is overwritten.
func InjectCallback(memo, contract string) (string, error) {
	if memo == "" {
		memo = "{}"
	}
	obj, err := decodeObject(memo)
	if err != nil {
		return "", err
	}
	value, err := json.Marshal(contract)
	if err != nil {
		return "", err
	}
	obj[CallbackKey] = value
	out, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("error serializing memo: %w", err)
	}
	return string(out), nil
}

// CallbackContract returns the callback contract named in memo, if any.
func CallbackContract(memo string) (string, bool) {
	if memo == "" {
		return "", false
	}
	obj, err := decodeObject(memo)
	if err != nil {
		return "", false
	}
	raw, ok := obj[CallbackKey]
	if !ok {
		return "", false
	}
	var contract string
	if err := json.Unmarshal(raw, &contract); err != nil || contract == "" {
		return "", false
	}
	return contract, true
}

func decodeObject(memo string) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(memo))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a json object", ErrInvalidMemo)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: error parsing memo: %v", ErrInvalidMemo, err)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	return obj, nil
}
