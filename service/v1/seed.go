package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/locey/TaskAVS/base/stores/gdb/avs"
	"github.com/locey/TaskAVS/dao"
)

// DemoTasks are the task templates a fresh deployment is seeded with.
func DemoTasks() []*avs.TaskTemplate {
	return []*avs.TaskTemplate{
		{
			Title: "Real Estate Asset Verification and Location Mapping",
			Description: "Conduct on-site verification of real estate properties and create detailed location mapping for " +
				"tokenization. Tasks include: photographing the property, verifying coordinates, checking property " +
				"conditions, and creating a comprehensive digital report. Experience with real estate assessment and " +
				"geolocation tools required.",
			Deadline: 10,
			Tags:     []string{"real-estate", "verification", "mapping", "rwa"},
		},
		{
			Title: "RWA Smart Contract Development and Audit",
			Description: "Develop and audit smart contracts for Real World Asset tokenization platform. Focus on " +
				"implementing ERC-3643 token standard for compliant RWA tokenization, including KYC/AML checks, transfer " +
				"restrictions, and regulatory compliance features. Strong background in Solidity and security auditing required.",
			Deadline: 21,
			Tags:     []string{"smart-contracts", "security", "audit", "rwa-tokenization"},
		},
		{
			Title: "Asset Documentation and Compliance Verification",
			Description: "Review and verify legal documentation for real-world assets before tokenization. Tasks include: " +
				"analyzing property deeds, checking regulatory compliance, verifying ownership chains, and preparing digital " +
				"documentation packages. Legal background or experience with property documentation preferred.",
			Deadline: 7,
			Tags:     []string{"legal", "compliance", "documentation", "verification"},
		},
	}
}

// SeedTasks replaces the task catalog with DemoTasks.
func SeedTasks(ctx context.Context, d *dao.Dao) (int, error) {
	tasks := DemoTasks()
	if err := d.ReplaceTasks(ctx, tasks); err != nil {
		return 0, errors.Wrap(err, "failed on seed tasks")
	}
	return len(tasks), nil
}
