package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/xelth-com/sharpcrmgo/internal/catalog"
	"github.com/xelth-com/sharpcrmgo/internal/engine"
	"github.com/xelth-com/sharpcrmgo/internal/middleware"
	"github.com/xelth-com/sharpcrmgo/internal/models"
	"github.com/xelth-com/sharpcrmgo/internal/utils"
)

// listServiceFiles returns active service files, newest first
func (r *Router) listServiceFiles(w http.ResponseWriter, req *http.Request) {
	var files []models.ServiceFile
	q := r.db.Order("id DESC")
	if req.URL.Query().Get("archived") == "true" {
		q = q.Where("archived_at IS NOT NULL")
	} else {
		q = q.Where("archived_at IS NULL")
	}
	if err := q.Find(&files).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch service files")
		return
	}
	respondJSON(w, http.StatusOK, files)
}

// createServiceFile creates a new service file at intake
func (r *Router) createServiceFile(w http.ResponseWriter, req *http.Request) {
	var file models.ServiceFile
	if err := json.NewDecoder(req.Body).Decode(&file); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	file.ID = 0
	file.ArchivedAt = nil
	if err := r.db.Create(&file).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create service file")
		return
	}

	if err := engine.NewTagSync(r.store).SyncLeadTags(req.Context(), file.LeadID); err != nil {
		log.Printf("⚠️ Tag sync after intake failed for lead %d: %v", file.LeadID, err)
	}

	respondJSON(w, http.StatusCreated, file)
}

// getServiceFile returns a single service file with its trays
func (r *Router) getServiceFile(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	var file models.ServiceFile
	if err := r.db.Preload("Trays").First(&file, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Service file not found")
		return
	}
	respondJSON(w, http.StatusOK, file)
}

// StatusUpdateRequest carries the lifecycle flag changes of a service file.
type StatusUpdateRequest struct {
	Urgent       *bool `json:"urgent,omitempty"`
	IsReturn     *bool `json:"isReturn,omitempty"`
	OfficeDirect *bool `json:"officeDirect,omitempty"`
	CourierSent  *bool `json:"courierSent,omitempty"`
	Locked       *bool `json:"locked,omitempty"`
}

// updateServiceFileStatus flips lifecycle flags and re-derives lead tags
func (r *Router) updateServiceFileStatus(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	var file models.ServiceFile
	if err := r.db.First(&file, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Service file not found")
		return
	}
	if file.Archived() {
		respondError(w, http.StatusConflict, "Service file is archived")
		return
	}

	var body StatusUpdateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.Urgent != nil {
		file.Urgent = *body.Urgent
	}
	if body.IsReturn != nil {
		file.IsReturn = *body.IsReturn
	}
	if body.OfficeDirect != nil {
		file.OfficeDirect = *body.OfficeDirect
	}
	if body.CourierSent != nil {
		file.CourierSent = *body.CourierSent
	}
	if body.Locked != nil {
		file.Locked = *body.Locked
	}
	if err := r.db.Save(&file).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update service file")
		return
	}

	if err := engine.NewTagSync(r.store).SyncLeadTags(req.Context(), file.LeadID); err != nil {
		log.Printf("⚠️ Tag sync failed for lead %d: %v", file.LeadID, err)
	}

	respondJSON(w, http.StatusOK, file)
}

// getModel projects the persisted rows into the editing model
func (r *Router) getModel(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	cat, err := catalog.Load(req.Context(), r.store)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}

	opts := engine.ProjectOptions{DepartmentID: queryDepartment(req)}
	model, err := engine.NewProjector(r.store, cat).Project(req.Context(), id, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to project service file")
		return
	}
	respondJSON(w, http.StatusOK, model)
}

// saveModel reconciles the posted editing model against storage
func (r *Router) saveModel(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	var model engine.EditModel
	if err := json.NewDecoder(req.Body).Decode(&model); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	cat, err := catalog.Load(req.Context(), r.store)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}

	opts := engine.SaveOptions{
		DepartmentID:        queryDepartment(req),
		DefaultDepartmentID: queryUint(req, "defaultDepartment"),
		ActorID:             actorID(req),
	}
	result, err := engine.NewReconciler(r.store, cat).Save(req.Context(), id, &model, opts)
	if err != nil {
		var confErr *engine.ConfigurationError
		switch {
		case errors.As(err, &confErr):
			respondError(w, http.StatusUnprocessableEntity, confErr.Error())
		case errors.Is(err, engine.ErrArchived):
			respondError(w, http.StatusConflict, "Service file is archived")
		case errors.Is(err, engine.ErrNotFound):
			respondError(w, http.StatusNotFound, "Service file not found")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// archiveServiceFile runs the archival pipeline
func (r *Router) archiveServiceFile(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	cat, err := catalog.Load(req.Context(), r.store)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}

	result, err := engine.NewArchiver(r.store, cat).Archive(req.Context(), id, actorID(req))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Service file not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]interface{}{
		"archiveId":       result.ArchiveID,
		"itemCount":       result.ItemCount,
		"alreadyArchived": result.AlreadyArchived,
	}
	// A release failure does not undo the archival; surface it separately
	// so the operator can retry release on its own.
	if result.ReleaseErr != nil {
		response["releaseError"] = result.ReleaseErr.Error()
	}
	respondJSON(w, http.StatusOK, response)
}

// MoveStageRequest names the target of an atomic stage transition.
type MoveStageRequest struct {
	ItemType   string `json:"itemType"`
	ItemID     uint   `json:"itemId"`
	PipelineID uint   `json:"pipelineId"`
	StageID    uint   `json:"stageId"`
}

// moveStage performs an atomic stage transition for a tray or file
func (r *Router) moveStage(w http.ResponseWriter, req *http.Request) {
	if _, ok := pathID(w, req); !ok {
		return
	}
	var body MoveStageRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	err := engine.NewTagSync(r.store).MoveToStage(req.Context(), body.ItemType, body.ItemID, body.PipelineID, body.StageID, actorID(req))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

// syncLeadTags re-derives the urgent/return tags for a lead
func (r *Router) syncLeadTags(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	if err := engine.NewTagSync(r.store).SyncLeadTags(req.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

// pathID parses the {id} path variable
func pathID(w http.ResponseWriter, req *http.Request) (uint, bool) {
	vars := mux.Vars(req)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return uint(id), true
}

// queryDepartment parses the optional ?department= query parameter
func queryDepartment(req *http.Request) *uint {
	return queryUint(req, "department")
}

func queryUint(req *http.Request, name string) *uint {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	u := uint(v)
	return &u
}

// actorID extracts the acting user from the auth claims
func actorID(req *http.Request) *uint {
	claims, ok := middleware.ClaimsFromContext(req.Context())
	if !ok {
		return nil
	}
	return utils.ActorIDFromClaims(claims)
}
