package damiao

import (
	"fmt"
	"sync"
)

// Motor holds the identity and last reported state of one motor on the bus.
// Commands are sent to SendID; feedback arrives on RecvID. State access is
// safe for concurrent use.
type Motor struct {
	typ    MotorType
	limits Limits
	sendID uint32
	recvID uint32

	mu        sync.RWMutex
	status    StatusCode
	position  float64
	velocity  float64
	torque    float64
	tempMOS   uint8
	tempRotor uint8
	registers map[uint8]uint32
}

// NewMotor creates a motor of the given type with its send and receive CAN
// ids. The type must have a known limit table.
func NewMotor(typ MotorType, sendID, recvID uint32) (*Motor, error) {
	lim, err := typ.Limits()
	if err != nil {
		return nil, err
	}
	if sendID == recvID {
		return nil, fmt.Errorf("damiao: send and recv id must differ (0x%X)", sendID)
	}
	if sendID == BroadcastID || recvID == BroadcastID {
		return nil, fmt.Errorf("damiao: id 0x%X is reserved for broadcast", BroadcastID)
	}
	return &Motor{
		typ:       typ,
		limits:    lim,
		sendID:    sendID,
		recvID:    recvID,
		registers: make(map[uint8]uint32),
	}, nil
}

// Type returns the motor model.
func (m *Motor) Type() MotorType { return m.typ }

// Limits returns the motor's value ranges.
func (m *Motor) Limits() Limits { return m.limits }

// SendID returns the CAN id commands are addressed to.
func (m *Motor) SendID() uint32 { return m.sendID }

// RecvID returns the CAN id feedback arrives on.
func (m *Motor) RecvID() uint32 { return m.recvID }

// Position returns the last reported position in radians.
func (m *Motor) Position() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// Velocity returns the last reported velocity in rad/s.
func (m *Motor) Velocity() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.velocity
}

// Torque returns the last reported torque in Nm.
func (m *Motor) Torque() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.torque
}

// Temperatures returns the last reported MOS and rotor temperatures.
func (m *Motor) Temperatures() (mos, rotor uint8) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tempMOS, m.tempRotor
}

// Status returns the last reported status nibble.
func (m *Motor) Status() StatusCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Err returns the motor's current fault as an error, or nil when healthy.
func (m *Motor) Err() error {
	return m.Status().Err()
}

// Register returns the last value seen for a register id.
func (m *Motor) Register(rid uint8) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.registers[rid]
	return v, ok
}

func (m *Motor) applyState(s StateFeedback) {
	m.mu.Lock()
	m.status = s.Status
	m.position = s.Position
	m.velocity = s.Velocity
	m.torque = s.Torque
	m.tempMOS = s.TempMOS
	m.tempRotor = s.TempRotor
	m.mu.Unlock()
}

func (m *Motor) applyRegister(r RegisterReply) {
	m.mu.Lock()
	m.registers[r.RID] = r.Value
	m.mu.Unlock()
}

func (m *Motor) String() string {
	return fmt.Sprintf("%s send=0x%02X recv=0x%02X", m.typ, m.sendID, m.recvID)
}
