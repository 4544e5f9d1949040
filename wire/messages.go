package wire

// CheckRequest announces the sender's identity and asks the receiver
// whether it may proceed.
type CheckRequest struct {
	Host     string `protobuf:"bytes,1,opt,name=host,proto3" json:"host,omitempty"`
	Identity string `protobuf:"bytes,2,opt,name=identity,proto3" json:"identity,omitempty"`
}

func (m *CheckRequest) Reset()         { *m = CheckRequest{} }
func (m *CheckRequest) String() string { return m.Host + "/" + m.Identity }
func (*CheckRequest) ProtoMessage()    {}

// InitRequest names the storage group about to be synced.
type InitRequest struct {
	StorageGroup string `protobuf:"bytes,1,opt,name=storage_group,json=storageGroup,proto3" json:"storage_group,omitempty"`
}

func (m *InitRequest) Reset()         { *m = InitRequest{} }
func (m *InitRequest) String() string { return m.StorageGroup }
func (*InitRequest) ProtoMessage()    {}

// InitSyncDataRequest announces the filename about to be streamed.
type InitSyncDataRequest struct {
	Filename string `protobuf:"bytes,1,opt,name=filename,proto3" json:"filename,omitempty"`
}

func (m *InitSyncDataRequest) Reset()         { *m = InitSyncDataRequest{} }
func (m *InitSyncDataRequest) String() string { return m.Filename }
func (*InitSyncDataRequest) ProtoMessage()    {}

// CheckDataMD5Request carries the sender's hex digest for the file or
// schema batch just streamed.
type CheckDataMD5Request struct {
	Digest string `protobuf:"bytes,1,opt,name=digest,proto3" json:"digest,omitempty"`
}

func (m *CheckDataMD5Request) Reset()         { *m = CheckDataMD5Request{} }
func (m *CheckDataMD5Request) String() string { return m.Digest }
func (*CheckDataMD5Request) ProtoMessage()    {}

// SyncDeletedFileNameRequest names one file the sender no longer has
// locally.
type SyncDeletedFileNameRequest struct {
	Filename string `protobuf:"bytes,1,opt,name=filename,proto3" json:"filename,omitempty"`
}

func (m *SyncDeletedFileNameRequest) Reset()         { *m = SyncDeletedFileNameRequest{} }
func (m *SyncDeletedFileNameRequest) String() string { return m.Filename }
func (*SyncDeletedFileNameRequest) ProtoMessage()    {}

// ResultStatus is the receiver's uniform reply shape for every RPC.
type ResultStatus struct {
	Success  bool   `protobuf:"varint,1,opt,name=success,proto3" json:"success,omitempty"`
	ErrorMsg string `protobuf:"bytes,2,opt,name=error_msg,json=errorMsg,proto3" json:"error_msg,omitempty"`
	Msg      string `protobuf:"bytes,3,opt,name=msg,proto3" json:"msg,omitempty"`
}

func (m *ResultStatus) Reset()         { *m = ResultStatus{} }
func (m *ResultStatus) String() string { return m.ErrorMsg }
func (*ResultStatus) ProtoMessage()    {}
