// Package mqtt provides the broker connection of the irrigation controller.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing switch commands and retained program state
//   - Subscriptions that survive reconnects
//   - A retained online/offline service status with LWT
//
// # Topics
//
//	graylogic/core/entity/{entity_id}/state      ← values read by programs
//	graylogic/command/{protocol}/{device_id}     → zone valve commands
//	graylogic/core/irrigation/{id}/state         → program attributes (retained)
//	graylogic/core/irrigation/{id}/command       ← {"command":"start"|"stop"}
//	graylogic/core/irrigation/stop_programs      ← {"ignore":"<program id>"}
//	graylogic/system/irrigation/status           → online/offline (retained, LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEntityStates(), 1, store.HandleStateMessage)
//
// TLS should be enabled for any broker outside localhost.
package mqtt
