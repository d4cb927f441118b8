// Package logging hands out component loggers backed by one shared logrus
// root. LOG_LEVEL is applied once at startup through Level.
package logging
