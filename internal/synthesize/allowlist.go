// internal/synthesize/allowlist.go
package synthesize

import "sort"

// Identifier policy for generated diagram code. The code executes in a
// pre-configured namespace: only allow-listed capability identifiers
// plus the safe primitives exist there.

// safeIdentifiers are the structural primitives that may always be
// called: the diagram context, the grouping container, the edge
// decorator, and the generic placeholder.
var safeIdentifiers = map[string]bool{
	"Diagram": true,
	"Cluster": true,
	"Edge":    true,
	"Node":    true,
}

// allowedServices are the instantiable capability identifiers in the
// pre-configured namespace.
var allowedServices = map[string]bool{
	// Compute
	"Lambda": true,
	"EC2":    true,
	"ECS":    true,
	"Batch":  true,
	// Database and storage
	"RDS":                     true,
	"DynamodbTable":           true,
	"ElastiCache":             true,
	"Redshift":                true,
	"S3":                      true,
	"EBS":                     true,
	"EFS":                     true,
	"ElasticsearchService":    true,
	"AmazonOpensearchService": true,
	// Network
	"APIGateway": true,
	"ALB":        true,
	"NLB":        true,
	"NATGateway": true,
	"Route53":    true,
	// Messaging
	"SQS":     true,
	"SNS":     true,
	"Kinesis": true,
	// Observability and security
	"Cloudwatch":     true,
	"Cloudtrail":     true,
	"XRay":           true,
	"SecretsManager": true,
}

// deniedConcepts are grouping/logical concepts that must become
// Cluster groupings, never instantiated objects. They are surfaced in
// the generation prompt and will be repaired to placeholders if the
// model instantiates them anyway.
var deniedConcepts = []string{
	"VPC",
	"Subnet",
	"SecurityGroup",
	"RDSProxy",
	"DBProxy",
	"DynamoDB",
	"CloudWatch",
	"CloudTrail",
}

// AllowedServices returns the sorted-stable allow-list for prompt
// construction and introspection.
func AllowedServices() []string {
	out := make([]string, 0, len(allowedServices))
	for s := range allowedServices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
