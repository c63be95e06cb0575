package openarm

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openarm/openarm-go/pkg/damiao"
)

const DefaultConfigFile = "openarm.json"

// MotorConfig describes one motor slot in the configuration file.
type MotorConfig struct {
	Type   string `json:"type"`
	SendID uint32 `json:"send_id"`
	RecvID uint32 `json:"recv_id"`
}

// Config holds the robot configuration.
type Config struct {
	Interface  string             `json:"interface"`
	FD         bool               `json:"canfd"`
	Arm        []MotorConfig      `json:"arm"`
	Joints     []JointCalibration `json:"joints,omitempty"`
	Gripper    *MotorConfig       `json:"gripper,omitempty"`
	GripperCal GripperCalibration `json:"gripper_calibration,omitempty"`
}

// HasGripper returns true if a gripper motor is configured.
func (c *Config) HasGripper() bool {
	return c.Gripper != nil
}

// IsCalibrated returns true if the gripper has usable calibration data.
func (c *Config) IsCalibrated() bool {
	return c.GripperCal.Valid()
}

// LoadConfig loads configuration from the default config file.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists.
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}

// OpenArm connects to the configured interface and registers all
// configured motors.
func (c *Config) OpenArm() (*Arm, error) {
	if c.Interface == "" {
		return nil, fmt.Errorf("openarm: no CAN interface configured")
	}
	arm, err := Open(c.Interface, c.FD)
	if err != nil {
		return nil, err
	}
	if err := c.initMotors(arm); err != nil {
		arm.Close()
		return nil, err
	}
	return arm, nil
}

// initMotors registers the configured motors on an arm coordinator.
func (c *Config) initMotors(arm *Arm) error {
	types := make([]damiao.MotorType, len(c.Arm))
	sendIDs := make([]uint32, len(c.Arm))
	recvIDs := make([]uint32, len(c.Arm))
	for i, mc := range c.Arm {
		typ, err := damiao.ParseMotorType(mc.Type)
		if err != nil {
			return fmt.Errorf("arm motor %d: %w", i, err)
		}
		types[i] = typ
		sendIDs[i] = mc.SendID
		recvIDs[i] = mc.RecvID
	}
	if err := arm.InitArmMotors(types, sendIDs, recvIDs); err != nil {
		return err
	}
	if c.Gripper != nil {
		typ, err := damiao.ParseMotorType(c.Gripper.Type)
		if err != nil {
			return fmt.Errorf("gripper motor: %w", err)
		}
		if err := arm.InitGripperMotor(typ, c.Gripper.SendID, c.Gripper.RecvID, c.GripperCal); err != nil {
			return err
		}
	}
	return nil
}
