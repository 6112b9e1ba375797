package kernel

type FlowID string

func NewFlowID(id string) FlowID { return FlowID(id) }
func (f FlowID) String() string  { return string(f) }
func (f FlowID) IsEmpty() bool   { return string(f) == "" }

type ContactID string

func NewContactID(id string) ContactID { return ContactID(id) }
func (c ContactID) String() string     { return string(c) }
func (c ContactID) IsEmpty() bool      { return string(c) == "" }

type ExecutionID string

func NewExecutionID(id string) ExecutionID { return ExecutionID(id) }
func (e ExecutionID) String() string       { return string(e) }
func (e ExecutionID) IsEmpty() bool        { return string(e) == "" }

type ActionID string

func NewActionID(id string) ActionID { return ActionID(id) }
func (a ActionID) String() string    { return string(a) }
func (a ActionID) IsEmpty() bool     { return string(a) == "" }

type ScheduleID string

func NewScheduleID(id string) ScheduleID { return ScheduleID(id) }
func (s ScheduleID) String() string      { return string(s) }
func (s ScheduleID) IsEmpty() bool       { return string(s) == "" }
