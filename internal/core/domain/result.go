package domain

// CancelRequestResult is the normalized outcome written to the result stream.
type CancelRequestResult struct {
	CancelRequestID int          `avro:"cancelRequestId" json:"cancelRequestId"`
	JobID           *string      `avro:"jobId"           json:"jobId"`
	Success         bool         `avro:"success"         json:"success"`
	Error           *ResultError `avro:"error"           json:"error"`
}

// ResultError describes why a cancel request could not be completed.
type ResultError struct {
	Type    string `avro:"type"    json:"type"`
	Message string `avro:"message" json:"message"`
}
