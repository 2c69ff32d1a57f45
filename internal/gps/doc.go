// Package gps reads position fixes from a GNSS receiver, either NMEA over
// a serial port or gpsd's JSON stream, and converts them into the integer
// units the navigation core works in.
//
// - RMC closes an epoch: position, ground speed, course
// - GGA adds altitude, satellites and HDOP
// - the receiver startup sequence trims the sentence set and raises the
//   navigation rate once the heartbeat is running
package gps
