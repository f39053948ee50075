package pkg

// Notification source and detail-type values emitted by ECS through EventBridge
const (
	SourceECS                              = "aws.ecs"
	DetailTypeContainerInstanceStateChange = "ECS Container Instance State Change"
	DetailTypeTaskStateChange              = "ECS Task State Change"
	DetailTypeServiceAction                = "ECS Service Action"
	DetailTypeDeploymentStateChange        = "ECS Deployment State Change"
)

// ContainerInstanceDetail is the part of a container instance state change
// notification this service reads. Other fields are ignored.
type ContainerInstanceDetail struct {
	ClusterArn           string `json:"clusterArn"`
	ContainerInstanceArn string `json:"containerInstanceArn,omitempty"`
	EC2InstanceID        string `json:"ec2InstanceId,omitempty"`
	Status               string `json:"status,omitempty"`
	AgentConnected       *bool  `json:"agentConnected,omitempty"`
}

// ServiceState holds the desired task count of a service in a cluster
type ServiceState struct {
	Cluster      string `json:"cluster"`
	ServiceName  string `json:"serviceName"`
	Status       string `json:"status"`
	DesiredCount int64  `json:"desiredCount"`
	RunningCount int64  `json:"runningCount"`
}

// ClusterState holds the number of registered container instances in a cluster
type ClusterState struct {
	ClusterArn                        string `json:"clusterArn"`
	ClusterName                       string `json:"clusterName"`
	RegisteredContainerInstancesCount int64  `json:"registeredContainerInstancesCount"`
}

// TargetStatus is one row of the status dashboard
type TargetStatus struct {
	Cluster             string
	ServiceName         string
	Found               bool
	Status              string
	DesiredCount        int64
	RunningCount        int64
	RegisteredInstances int64
}

// InSync reports whether the desired count already matches the registered instances
func (s TargetStatus) InSync() bool {
	return s.Found && s.DesiredCount == s.RegisteredInstances
}
