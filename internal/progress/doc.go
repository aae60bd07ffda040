// Package progress rolls assembly line items and logged progress entries up
// into stage and project completion percentages, manufacturing weight totals
// and time-tracking statistics. The aggregation functions are pure and
// order-independent; Service loads snapshots from a tracking.Reader and
// Recorder accepts new entries.
package progress
