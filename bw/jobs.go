package bw

import (
	"context"
	"net/http"

	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const (
	jobsPath = modelingBase + "jobs"

	jobsAccept     = "application/vnd.sap-bw-modeling.jobs+xml"
	jobAccept      = "application/vnd.sap-bw-modeling.jobs.job+xml"
	statusAccept   = "application/vnd.sap-bw-modeling.jobs.job.status+xml"
	progressAccept = "application/vnd.sap-bw-modeling.jobs.job.progress+xml"
	stepsAccept    = "application/vnd.sap-bw-modeling.jobs.steps+xml"
	messagesAccept = "application/vnd.sap-bw-modeling.balmessages+xml"
	interruptType  = "application/vnd.sap-bw-modeling.jobs.job.interrupt+xml"
)

func jobPath(guid string) string {
	return jobsPath + "/" + urlutil.Encode(guid)
}

// ListJobs returns the background jobs visible to the user.
func ListJobs(ctx context.Context, s Session) ([]Job, error) {
	body, err := getXML(ctx, s, "BwListJobs", jobsPath, jobsAccept)
	if err != nil {
		return nil, err
	}
	return xmlcodec.ParseJobs(body)
}

// GetJob reads one job.
func GetJob(ctx context.Context, s Session, guid string) (Job, error) {
	const op = "BwGetJob"
	if err := required(op, "job GUID", guid); err != nil {
		return Job{}, err
	}
	body, err := getXML(ctx, s, op, jobPath(guid), jobAccept)
	if err != nil {
		return Job{}, err
	}
	return xmlcodec.ParseJob(guid, body)
}

// GetJobStatus reads the status resource of a job.
func GetJobStatus(ctx context.Context, s Session, guid string) (Job, error) {
	const op = "BwGetJobStatus"
	if err := required(op, "job GUID", guid); err != nil {
		return Job{}, err
	}
	body, err := getXML(ctx, s, op, jobPath(guid)+"/status", statusAccept)
	if err != nil {
		return Job{}, err
	}
	return xmlcodec.ParseJob(guid, body)
}

// GetJobProgress reads the progress resource of a job.
func GetJobProgress(ctx context.Context, s Session, guid string) (JobProgress, error) {
	const op = "BwGetJobProgress"
	if err := required(op, "job GUID", guid); err != nil {
		return JobProgress{}, err
	}
	body, err := getXML(ctx, s, op, jobPath(guid)+"/progress", progressAccept)
	if err != nil {
		return JobProgress{}, err
	}
	return xmlcodec.ParseJobProgress(guid, body)
}

// GetJobSteps lists the steps of a job.
func GetJobSteps(ctx context.Context, s Session, guid string) ([]JobStep, error) {
	const op = "BwGetJobSteps"
	if err := required(op, "job GUID", guid); err != nil {
		return nil, err
	}
	body, err := getXML(ctx, s, op, jobPath(guid)+"/steps", stepsAccept)
	if err != nil {
		return nil, err
	}
	return xmlcodec.ParseJobSteps(guid, body)
}

// GetJobMessages returns the application log of a job.
func GetJobMessages(ctx context.Context, s Session, guid string) ([]JobMessage, error) {
	const op = "BwGetJobMessages"
	if err := required(op, "job GUID", guid); err != nil {
		return nil, err
	}
	body, err := getXML(ctx, s, op, jobPath(guid)+"/messages", messagesAccept)
	if err != nil {
		return nil, err
	}
	return xmlcodec.ParseJobMessages(guid, body)
}

// InterruptJob asks the server to stop a running job.
func InterruptJob(ctx context.Context, s Session, guid string) error {
	return jobAction(ctx, s, "BwInterruptJob", guid, "/interrupt", interruptType)
}

// RestartJob restarts a failed or interrupted job.
func RestartJob(ctx context.Context, s Session, guid string) error {
	return jobAction(ctx, s, "BwRestartJob", guid, "/restart", "application/xml")
}

// CleanupJob removes a finished job and its resources. This is the only way
// to cancel server-side work; polling never does it implicitly.
func CleanupJob(ctx context.Context, s Session, guid string) error {
	const op = "BwCleanupJob"
	if err := required(op, "job GUID", guid); err != nil {
		return err
	}
	path := jobPath(guid) + "/cleanup"
	resp, err := s.Delete(ctx, path, nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError(op, path, resp)
	}
	return nil
}

func jobAction(ctx context.Context, s Session, op, guid, suffix, contentType string) error {
	if err := required(op, "job GUID", guid); err != nil {
		return err
	}
	path := jobPath(guid) + suffix
	resp, err := s.Post(ctx, path, "", contentType, nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError(op, path, resp)
	}
	return nil
}
