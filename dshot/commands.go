package dshot

// Command is a special DSHOT frame value below MinThrottle.
type Command uint16

// Command values use the Betaflight/BLHeli numbering.
const (
	CmdMotorStop Command = iota
	CmdBeacon1
	CmdBeacon2
	CmdBeacon3
	CmdBeacon4
	CmdBeacon5
	CmdESCInfo
	CmdSpinDirection1
	CmdSpinDirection2
	Cmd3DModeOff
	Cmd3DModeOn
	CmdSettingsRequest
	CmdSaveSettings
	CmdExtendedTelemetryEnable
	CmdExtendedTelemetryDisable
)

const (
	CmdSpinDirectionNormal Command = iota + 20
	CmdSpinDirectionReversed
	CmdLED0On // BLHeli32 only
	CmdLED1On // BLHeli32 only
	CmdLED2On // BLHeli32 only
	CmdLED3On // BLHeli32 only
	CmdLED0Off
	CmdLED1Off
	CmdLED2Off
	CmdLED3Off
	CmdAudioStreamModeOnOff // KISS audio stream mode
	CmdSilentModeOnOff      // KISS silent mode
	CmdSignalLineTelemetryDisable
	CmdSignalLineContinuousERPMTelemetry

	CmdMax Command = 47
)

// ProtocolRepeats is the number of identical frames an ESC needs before it
// latches a setting-type command.
const ProtocolRepeats = 6

var commandNames = map[Command]string{
	CmdMotorStop:                         "MOTOR_STOP",
	CmdBeacon1:                           "BEACON1",
	CmdBeacon2:                           "BEACON2",
	CmdBeacon3:                           "BEACON3",
	CmdBeacon4:                           "BEACON4",
	CmdBeacon5:                           "BEACON5",
	CmdESCInfo:                           "ESC_INFO",
	CmdSpinDirection1:                    "SPIN_DIRECTION_1",
	CmdSpinDirection2:                    "SPIN_DIRECTION_2",
	Cmd3DModeOff:                         "3D_MODE_OFF",
	Cmd3DModeOn:                          "3D_MODE_ON",
	CmdSettingsRequest:                   "SETTINGS_REQUEST",
	CmdSaveSettings:                      "SAVE_SETTINGS",
	CmdExtendedTelemetryEnable:           "EXTENDED_TELEMETRY_ENABLE",
	CmdExtendedTelemetryDisable:          "EXTENDED_TELEMETRY_DISABLE",
	CmdSpinDirectionNormal:               "SPIN_DIRECTION_NORMAL",
	CmdSpinDirectionReversed:             "SPIN_DIRECTION_REVERSED",
	CmdLED0On:                            "LED0_ON",
	CmdLED1On:                            "LED1_ON",
	CmdLED2On:                            "LED2_ON",
	CmdLED3On:                            "LED3_ON",
	CmdLED0Off:                           "LED0_OFF",
	CmdLED1Off:                           "LED1_OFF",
	CmdLED2Off:                           "LED2_OFF",
	CmdLED3Off:                           "LED3_OFF",
	CmdAudioStreamModeOnOff:              "AUDIO_STREAM_MODE_ON_OFF",
	CmdSilentModeOnOff:                   "SILENT_MODE_ON_OFF",
	CmdSignalLineTelemetryDisable:        "SIGNAL_LINE_TELEMETRY_DISABLE",
	CmdSignalLineContinuousERPMTelemetry: "SIGNAL_LINE_CONTINUOUS_ERPM_TELEMETRY",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Allowed reports whether c may be sent. Commands that only make sense with a
// telemetry decoder (ESC info, settings request, extended telemetry) and the
// unassigned codes are refused.
func (c Command) Allowed() bool {
	switch c {
	case CmdMotorStop,
		CmdBeacon1, CmdBeacon2, CmdBeacon3, CmdBeacon4, CmdBeacon5,
		CmdSpinDirection1, CmdSpinDirection2,
		Cmd3DModeOff, Cmd3DModeOn,
		CmdSaveSettings,
		CmdSpinDirectionNormal, CmdSpinDirectionReversed,
		CmdLED0On, CmdLED1On, CmdLED2On, CmdLED3On,
		CmdLED0Off, CmdLED1Off, CmdLED2Off, CmdLED3Off,
		CmdAudioStreamModeOnOff, CmdSilentModeOnOff,
		CmdSignalLineTelemetryDisable, CmdSignalLineContinuousERPMTelemetry:
		return true
	}
	return false
}

// IsBeacon reports whether c makes the ESC beep.
func (c Command) IsBeacon() bool {
	return c >= CmdBeacon1 && c <= CmdBeacon5
}

// IsDirection reports whether c changes the motor spin direction.
func (c Command) IsDirection() bool {
	switch c {
	case CmdSpinDirection1, CmdSpinDirection2, CmdSpinDirectionNormal, CmdSpinDirectionReversed:
		return true
	}
	return false
}

// ChangesSettings reports whether c alters a stored ESC setting and therefore
// has to be followed by CmdSaveSettings.
func (c Command) ChangesSettings() bool {
	switch {
	case c.IsDirection():
		return true
	case c == Cmd3DModeOff, c == Cmd3DModeOn:
		return true
	case c >= CmdLED0On && c <= CmdLED3Off:
		return true
	case c >= CmdAudioStreamModeOnOff && c <= CmdSignalLineContinuousERPMTelemetry:
		return true
	}
	return false
}

// Beacon returns the beacon command for tone n (1-5).
func Beacon(n int) (Command, bool) {
	if n < 1 || n > 5 {
		return 0, false
	}
	return CmdBeacon1 + Command(n-1), true
}

// LED returns the BLHeli32 LED command for led (0-3).
func LED(led int, on bool) (Command, bool) {
	if led < 0 || led > 3 {
		return 0, false
	}
	if on {
		return CmdLED0On + Command(led), true
	}
	return CmdLED0Off + Command(led), true
}
