package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrUnrecognizedWorkbook is returned when uploaded bytes are not a readable
// spreadsheet container. Fatal to the request; the user must re-export.
var ErrUnrecognizedWorkbook = errors.New("file is not a recognizable spreadsheet")
