package config

import (
	"os"
	"time"
)

// BookingConfig holds the timing rules of the booking core.
type BookingConfig struct {
	CleaningBuffer time.Duration // gap kept free after every check-out
	StaleAfter     time.Duration // unpaid reservations older than this are cancelled
	LockWait       time.Duration // max wait for the room row lock
	GatewayTimeout time.Duration // bound on the checkout-session call
	PastGrace      time.Duration // how far in the past a check-in may still be booked
	MaxAdvance     time.Duration // how far ahead a check-in may be booked
	SweepCron      string        // cron spec for the periodic sweep, empty disables it
	ShiftFloat     int64         // opening cash drawer float per shift, centavos
}

// LoadBookingConfig reads BOOKING_* variables, falling back to the house
// rules: 30 minute cleaning buffer, a 5 minute payment window and a
// PHP 5,000 drawer float.
func LoadBookingConfig() BookingConfig {
	return BookingConfig{
		CleaningBuffer: envDur("BOOKING_CLEANING_BUFFER", 30*time.Minute),
		StaleAfter:     envDur("BOOKING_STALE_AFTER", 5*time.Minute),
		LockWait:       envDur("BOOKING_LOCK_WAIT", 5*time.Second),
		GatewayTimeout: envDur("BOOKING_GATEWAY_TIMEOUT", 15*time.Second),
		PastGrace:      envDur("BOOKING_PAST_GRACE", 5*time.Minute),
		MaxAdvance:     envDur("BOOKING_MAX_ADVANCE", 365*24*time.Hour),
		SweepCron:      sweepCron(),
		ShiftFloat:     int64(envInt("SHIFT_FLOAT_CENTS", 500000)),
	}
}

func sweepCron() string {
	if v, ok := os.LookupEnv("SWEEP_CRON"); ok {
		return v
	}
	return "@every 1m"
}

// DefaultBookingConfig returns the house rules without reading the
// environment.
func DefaultBookingConfig() BookingConfig {
	return BookingConfig{
		CleaningBuffer: 30 * time.Minute,
		StaleAfter:     5 * time.Minute,
		LockWait:       5 * time.Second,
		GatewayTimeout: 15 * time.Second,
		PastGrace:      5 * time.Minute,
		MaxAdvance:     365 * 24 * time.Hour,
		SweepCron:      "@every 1m",
		ShiftFloat:     500000,
	}
}
