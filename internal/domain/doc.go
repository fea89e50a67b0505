// Package domain models the simulated ROTSE-III observing run: stars and their
// light curves, the observing site, sky rectangles, hourly weather and the
// per-hour transparency adjustments shared by every star in one field.
//
// # Time Conventions
//
// Light-curve samples are addressed by a day offset (float days) from the
// simulation start. The absolute instant of a sample is
//
//	start + offset * 24h
//
// and all astronomy is done on that instant in UTC. Calendar dates used for
// grouping samples into nights are taken in the simulation time zone.
//
// # Hour Index
//
// Hourly weather is addressed by an hour index. The weather series begins at
// 00:00 of the simulation start date (simulation time zone), which is hour 0.
// A sample's hour index is the number of whole hours between that origin and
// the sample instant rounded to the nearest hour (minutes >= 30 round up):
//
//	start 2003-01-01 12:00, offset 3.13 days -> 2003-01-04 15:07 -> 15:00
//	hourIndex = 3*24 + 15 = 87
//
// Both instants are compared as absolute times, so daylight-saving changes in
// the simulation zone never shift the index.
//
// # Sky Coordinates
//
// Right ascension and declination are in degrees. Fields of view and clouds
// are axis-aligned rectangles in the (ra, dec) plane. Rectangles that merely
// touch along an edge do not overlap; a point on a cloud's edge is inside it.
//
// # Weather Codes
//
// Weather codes follow the WMO present-weather numbering returned by the
// Open-Meteo API. Code 0 is a clear sky. The heavy-cloud set (fog, drizzle,
// rain, snow, showers and thunderstorms, minus code 71 light snow) always
// blocks observing; see [IsHeavyCloudCode].
package domain
