// Package dataprocessing turns the land-tender CSV export into dashboard statistics.
//
// Parse reads the export with a quote-tolerant splitter and never fails:
// rows with too few fields are dropped and unparsable numbers become 0.
//
//	records := dataprocessing.Parse(text)
//	stats := dataprocessing.Aggregate(records)
//
// Aggregate is a pure function of its input. Ranked lists use stable sorts,
// so equal keys keep input order and repeated runs produce identical output.
// Use NewAggregator to override the no-award winner markers or list sizes.
package dataprocessing
