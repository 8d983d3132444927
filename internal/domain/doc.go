// Package domain turns the two tracker datasets into typed records and the
// aggregates the front-end draws from them.
//
// # Data Sources
//
// Both datasets are maintained as shared spreadsheets and published as CSV.
//
// Incident dataset: one row per piece of evidence (a post, a video, a
// caption). Rows that describe the same real-world event share an
// "Incident ID". Headers are human-readable and are translated to field
// names by [NormalizeHeader]:
//
//	"Media Type"            →  MediaType
//	"Date of Post (ET)"     →  DateOfPost
//	"Fatality/Injury Counts" → Casualties
//
// Facility dataset: one row per nuclear-program site or sub-site. It is read
// by column position, not by header, so the column order is fixed:
//
//	0 Item_Id | 1 Main-Category | 2 Sub-Category | 3 (blank) | 4 Sub_Item | 5 Locations | 6 Sub_Item_Status
//
// # Conventions
//
// Coordinates:
//
//	"lat, lng" as one text cell, e.g. "35.6892, 51.3890". Exactly one comma.
//	Anything else (semicolons, a single number, blanks) drops the row.
//
// Dates:
//
//	"Date of Post (ET)" is kept as text. The earliest date of an incident is
//	the smallest string under byte ordering, which is only calendar order when
//	the sheet uses a zero-padded year-first format. Mixed formats sort as text.
//
// Facility status:
//
//	Free text ("Destroyed", "Likely destroyed", "Unknown/Non-operational",
//	"Under construction", ...) normalized by [ClassifyStatus]. The substring
//	checks run in a fixed order; "likely destroyed" is tested before
//	"destroyed" and "non-operational" is excluded from "operational".
//
// # Dirty Data
//
// Rows that fail a required-field check are dropped, not reported. Unmatched
// facility ↔ shape joins are returned to the caller in [JoinResult.Unmatched]
// so an operator can extend the override table.
package domain
