package schema

// ProcBridgeExecLogTable represents the 'procbridge.execlog' table
type ProcBridgeExecLogTable struct {
	Table         string
	InvocationID  string
	OperationCode string
	TargetName    string
	PayloadJSON   string
	Success       string
	ErrorMessage  string
	DurationMs    string
	TableCount    string
	CallerID      string
	CallerName    string
	ClientApp     string
	SourceAddress string
	CorrelationID string
	ExecutedAt    string
}

// ProcBridgeExecLog is the schema definition for procbridge.execlog
var ProcBridgeExecLog = ProcBridgeExecLogTable{
	Table:         "procbridge.execlog",
	InvocationID:  "invocationid",
	OperationCode: "operationcode",
	TargetName:    "targetname",
	PayloadJSON:   "payloadjson",
	Success:       "success",
	ErrorMessage:  "errormessage",
	DurationMs:    "durationms",
	TableCount:    "tablecount",
	CallerID:      "callerid",
	CallerName:    "callername",
	ClientApp:     "clientapp",
	SourceAddress: "sourceaddress",
	CorrelationID: "correlationid",
	ExecutedAt:    "executedat",
}

// Columns returns all standard column names
func (t ProcBridgeExecLogTable) Columns() []string {
	return []string{
		t.InvocationID, t.OperationCode, t.TargetName, t.PayloadJSON, t.Success, t.ErrorMessage, t.DurationMs,
		t.TableCount, t.CallerID, t.CallerName, t.ClientApp, t.SourceAddress, t.CorrelationID, t.ExecutedAt,
	}
}
