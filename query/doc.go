// Package query runs the asynchronous question-answering pipeline:
// embed the question, search the device's indexed page, assemble a
// token-budgeted context, generate a grounded answer. Query rows move
// PENDING -> PROCESSING -> SUCCESS or FAILED with stable error codes,
// and a wall-clock timeout forces abandoned rows to FAILED.
package query
