// Package domain models NASA FIRMS satellite fire-detection data.
//
// # Data Source
//
// Records originate from the FIRMS (Fire Information for Resource Management
// System) area API, https://firms.modaps.eosdis.nasa.gov/api/area/, which
// serves delimited CSV for a source product, geographic area, and date window
// of at most ten days per request.
//
// # FIRMS CSV Conventions
//
// Acquisition time:
//
//	acq_date is an ISO date (2004-07-22); acq_time is HHMM in 24-hour UTC,
//	not zero-padded in older archives ("459" → 04:59). Combined into a single
//	UTC timestamp during parsing.
//
// Confidence:
//
//	MODIS products report an integer percentage 0-100. VIIRS standard
//	processing reports letter codes instead: l (low), n (nominal), h (high),
//	mapped here to 30/60/90 so both products share one numeric scale.
//
// Detection type:
//
//	0 = presumed vegetation fire, 1 = active volcano, 2 = other static land
//	source, 3 = offshore detection.
//
// Sources:
//
//	MODIS_SP        MODIS (Terra & Aqua), available from 2000
//	VIIRS_SNPP_SP   VIIRS on Suomi-NPP, available from 2012-01-20 (first light)
//	VIIRS_NOAA20_SP VIIRS on NOAA-20, available from 2018
//
// Requests for VIIRS data before the S-NPP first-light date are rejected
// during validation rather than sent to the API.
//
// # Identity
//
// A detection is identified by (latitude, longitude, acquisition timestamp,
// source). Overlapping fetch windows produce exact duplicates on that tuple
// and nothing else, so deduplication uses it verbatim; [FireDetection.ID]
// derives a stable hash for downstream consumers.
package domain
