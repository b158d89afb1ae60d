package apimonitor

import "encoding/json"

// envelopeExtraction is what a shape extractor pulled out of a
// response payload.
type envelopeExtraction struct {
	Message string

	// Set only by shapes that carry their own exception reporting.
	ExceptionThrown  *bool
	ExceptionMessage string
}

// messageExtractor recognizes one known envelope shape. It reports ok
// when the shape matched, even if the shape carried no message.
type messageExtractor func(envelope map[string]interface{}) (envelopeExtraction, bool)

// messageExtractors are tried in order; the first matching shape wins.
var messageExtractors = []messageExtractor{
	extractEnvelopeBody,
	extractEnvelopeFooter,
}

// extractResponseMessage tries the known envelope shapes against a
// raw response payload. Malformed JSON and unknown shapes report not
// found; extraction never fails.
func extractResponseMessage(raw string) (envelopeExtraction, bool) {
	var envelope map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return envelopeExtraction{}, false
	}

	for _, extract := range messageExtractors {
		if result, ok := extract(envelope); ok {
			return result, true
		}
	}

	return envelopeExtraction{}, false
}

// extractEnvelopeBody matches { "EnvelopeBody": [ { "ResultMessage": ... } ] }.
func extractEnvelopeBody(envelope map[string]interface{}) (envelopeExtraction, bool) {
	body, ok := envelope["EnvelopeBody"].([]interface{})
	if !ok || len(body) == 0 {
		return envelopeExtraction{}, false
	}

	first, ok := body[0].(map[string]interface{})
	if !ok {
		return envelopeExtraction{}, false
	}

	result := envelopeExtraction{}
	if msg, ok := first["ResultMessage"].(string); ok {
		result.Message = msg
	}
	return result, true
}

// extractEnvelopeFooter matches { "EnvelopeFooter": { "ResponseMessage": ...,
// "ExceptionThrown": ..., "ExceptionMessage": ... } }.
func extractEnvelopeFooter(envelope map[string]interface{}) (envelopeExtraction, bool) {
	footer, ok := envelope["EnvelopeFooter"].(map[string]interface{})
	if !ok {
		return envelopeExtraction{}, false
	}

	result := envelopeExtraction{}
	if msg, ok := footer["ResponseMessage"].(string); ok {
		result.Message = msg
	}
	if thrown, ok := footer["ExceptionThrown"].(bool); ok {
		result.ExceptionThrown = &thrown
	}
	if msg, ok := footer["ExceptionMessage"].(string); ok && msg != "" {
		result.ExceptionMessage = msg
	}
	return result, true
}
