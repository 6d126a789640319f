// Package entity bridges irrigation programs to the rest of the building.
//
// Programs never talk to devices directly. They read named values
// (durations, switches, sensors) through a Store and drive zone valves
// through a SwitchActuator:
//
//	graylogic/core/entity/+/state ──► Store.Ingest ──► Store.Read ◄── programs
//	                                       ▲
//	                                       │ optimistic write
//	programs ──► SwitchActuator.TurnOn ────┴──► graylogic/command/{protocol}/{device}
//
// Entity ids are "<domain>.<object>" strings such as input_number.lawn_water
// or switch.front_lawn. The object part is the device id used on command
// topics.
//
// # Thread Safety
//
// Store and SwitchActuator are safe for concurrent use.
package entity
