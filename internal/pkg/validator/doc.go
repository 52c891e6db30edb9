// Package validator validates request structs through struct tags and reports
// failures as a map of JSON field name to human message.
package validator
