// Package mqtt bridges the LED service onto an MQTT broker.
//
// Commands arrive on <prefix>/channel/<n>/set (decimal duty 0..65535) and
// <prefix>/frequency/set (3000 or 22000). State is published retained on
// <prefix>/channel/<n>/state and <prefix>/frequency/state whenever it
// changes. <prefix>/status carries "online", or "offline" from a graceful
// Close or the broker-held last will.
package mqtt
