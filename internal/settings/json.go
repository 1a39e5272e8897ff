package settings

import "encoding/json"

func unmarshalOnto(s *Settings, standardJSON []byte) error {
	return json.Unmarshal(standardJSON, s)
}

func marshalIndent(s Settings) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
