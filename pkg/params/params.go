// Package params names the PostgreSQL parameters ("GUCs") PGAdapter
// exposes to clients via ParameterStatus messages and SHOW/SET.
//
// https://www.postgresql.org/docs/current/protocol-flow.html#PROTOCOL-ASYNC
//
// ParameterStatus messages are generated whenever the active value changes
// for any parameter the backend believes the frontend should know about.
// Most commonly this happens in response to a SET command executed by the
// client, and is effectively synchronous from the client's point of view.
package params

// ParameterStatuses is a session's current view of its GUC values.
type ParameterStatuses map[string]string

// Parameter names PGAdapter tracks and reports via ParameterStatus.
const (
	ParamServerVersion             = "server_version"
	ParamApplicationName           = "application_name"
	ParamIsSuperuser               = "is_superuser"
	ParamSessionAuthorization      = "session_authorization"
	ParamIntegerDatetimes          = "integer_datetimes"
	ParamServerEncoding            = "server_encoding"
	ParamClientEncoding            = "client_encoding"
	ParamDateStyle                 = "DateStyle"
	ParamIntervalStyle             = "IntervalStyle"
	ParamStandardConformingStrings = "standard_conforming_strings"
	ParamTimeZone                  = "TimeZone"
)

// BaseTrackedParameters lists every parameter whose change is reported to
// the client as a ParameterStatus message.
var BaseTrackedParameters = []string{
	ParamServerVersion,
	ParamApplicationName,
	ParamIsSuperuser,
	ParamSessionAuthorization,
	ParamIntegerDatetimes,
	ParamServerEncoding,
	ParamClientEncoding,
	ParamDateStyle,
	ParamIntervalStyle,
	ParamStandardConformingStrings,
	ParamTimeZone,
}

// BaseParameterStatuses holds the fixed values PGAdapter reports regardless
// of backend or client.
var BaseParameterStatuses = ParameterStatuses{
	ParamIsSuperuser:               "off",
	ParamIntegerDatetimes:          "on",
	ParamServerEncoding:            "UTF8",
	ParamDateStyle:                 "ISO,YMD",
	ParamIntervalStyle:             "iso_8601",
	ParamStandardConformingStrings: "on",
	ParamTimeZone:                  "UTC",
}

// ParameterStatusDiff maps a parameter name to either its new value
// (non-nil) or a deletion (nil), for sending incremental ParameterStatus
// updates to the client.
type ParameterStatusDiff map[string]*string

// DiffToTip computes the set of ParameterStatus messages needed to bring a
// client that has observed `base` up to date with `tip`.
func (base ParameterStatuses) DiffToTip(tip ParameterStatuses) ParameterStatusDiff {
	diff := ParameterStatusDiff{}

	for tipKey, tipValue := range tip {
		v := tipValue
		if baseValue, baseHas := base[tipKey]; !baseHas || baseValue != tipValue {
			diff[tipKey] = &v
		}
	}

	for baseKey := range base {
		if _, tipHas := tip[baseKey]; !tipHas {
			diff[baseKey] = nil
		}
	}

	return diff
}
