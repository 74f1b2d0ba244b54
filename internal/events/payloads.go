package events

import "github.com/bwmarrin/snowflake"

// Event payloads are plain structs owned by the bus package so domain
// packages can publish and subscribe without importing each other.

type QuoteSent struct {
	QuoteID    snowflake.ID
	CustomerID snowflake.ID
}

type QuoteAccepted struct {
	QuoteID    snowflake.ID
	CustomerID snowflake.ID
}

type JobCompleted struct {
	JobID      snowflake.ID
	CustomerID snowflake.ID
}

type InvoiceSent struct {
	InvoiceID  snowflake.ID
	CustomerID snowflake.ID
}

type InvoicePaid struct {
	InvoiceID  snowflake.ID
	CustomerID snowflake.ID
	JobID      *snowflake.ID
}
